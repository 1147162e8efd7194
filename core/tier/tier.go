// Package tier computes how a deposit is consumed across the ordered
// conversion tiers of an allowance and how much entitlement it earns.
package tier

import (
	"fmt"
	"math/big"

	"github.com/redesblock/tierswap/core/accounting"
)

// Tier is the conversion setting of a single tier. A deposit of Ratio units
// consumed from the tier credits one unit of entitlement.
type Tier struct {
	Ratio   uint64 `json:"ratio"`
	Enabled bool   `json:"enabled"`
}

// Config holds the settings of every tier in consumption order.
type Config [accounting.TierCount]Tier

// NewConfig builds a Config from ratio and enabled lists of TierCount entries.
func NewConfig(ratios []uint64, enabled []bool) (Config, error) {
	var c Config
	if len(ratios) != accounting.TierCount {
		return c, fmt.Errorf("%w: expected %d ratios, got %d", accounting.ErrInvalidTier, accounting.TierCount, len(ratios))
	}
	if len(enabled) != accounting.TierCount {
		return c, fmt.Errorf("%w: expected %d enabled flags, got %d", accounting.ErrInvalidTier, accounting.TierCount, len(enabled))
	}
	for i := range c {
		c[i] = Tier{Ratio: ratios[i], Enabled: enabled[i]}
	}
	return c, c.Validate()
}

// Validate checks that every tier has a positive ratio.
func (c Config) Validate() error {
	for i, t := range c {
		if t.Ratio == 0 {
			return fmt.Errorf("%w: tier %d has zero ratio", accounting.ErrInvalidAmount, i)
		}
	}
	return nil
}

// Ratios returns the ratio of every tier.
func (c Config) Ratios() []uint64 {
	r := make([]uint64, len(c))
	for i, t := range c {
		r[i] = t.Ratio
	}
	return r
}

// Enabled returns the enabled flag of every tier.
func (c Config) Enabled() []bool {
	e := make([]bool, len(c))
	for i, t := range c {
		e[i] = t.Enabled
	}
	return e
}

// CheckIndex returns ErrInvalidTier for indexes outside the tier range.
func CheckIndex(i int) error {
	if i < 0 || i >= accounting.TierCount {
		return fmt.Errorf("%w: %d", accounting.ErrInvalidTier, i)
	}
	return nil
}

// Result is the outcome of applying a payment to an allowance.
type Result struct {
	// Remaining is the allowance left in every tier.
	Remaining accounting.Limits
	// Consumed is the part of the payment the tiers absorbed.
	Consumed *big.Int
	// Credited is the entitlement earned by the consumed amount.
	Credited *big.Int
}

// Apply consumes pay from the enabled tiers of remaining in tier order. Every
// tier gives up at most its remaining amount and credits the taken amount
// divided by its ratio, truncated. Disabled tiers are skipped and any part of
// pay beyond the enabled capacity is left unconsumed. The arguments are not
// modified.
func Apply(remaining accounting.Limits, pay *big.Int, cfg Config) Result {
	r := Result{
		Remaining: remaining.Copy(),
		Consumed:  new(big.Int),
		Credited:  new(big.Int),
	}

	left := new(big.Int)
	if pay != nil && pay.Sign() > 0 {
		left.Set(pay)
	}

	for i, t := range cfg {
		if left.Sign() == 0 {
			break
		}
		if !t.Enabled || t.Ratio == 0 {
			continue
		}

		take := new(big.Int).Set(r.Remaining[i])
		if take.Cmp(left) > 0 {
			take.Set(left)
		}
		if take.Sign() == 0 {
			continue
		}

		r.Remaining[i].Sub(r.Remaining[i], take)
		left.Sub(left, take)
		r.Consumed.Add(r.Consumed, take)
		r.Credited.Add(r.Credited, new(big.Int).Quo(take, new(big.Int).SetUint64(t.Ratio)))
	}

	return r
}

// Capacity returns the total remaining over the enabled tiers.
func Capacity(remaining accounting.Limits, cfg Config) *big.Int {
	c := new(big.Int)
	for i, t := range cfg {
		if t.Enabled && remaining[i] != nil {
			c.Add(c, remaining[i])
		}
	}
	return c
}
