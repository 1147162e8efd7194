// Package accounting holds the primitives shared by the tiered swap
// components: per tier amount tuples and the error taxonomy every operation
// reports through.
package accounting

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// TierCount is the fixed number of conversion tiers.
const TierCount = 3

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Limits holds one amount per tier. A nil entry reads as zero.
type Limits [TierCount]*big.Int

// NewLimits builds Limits from the given values, missing tiers are zero.
func NewLimits(values ...int64) Limits {
	var l Limits
	for i := range l {
		l[i] = new(big.Int)
		if i < len(values) {
			l[i].SetInt64(values[i])
		}
	}
	return l
}

// Copy returns a deep copy with every nil entry replaced by zero.
func (l Limits) Copy() Limits {
	var c Limits
	for i, v := range l {
		c[i] = new(big.Int)
		if v != nil {
			c[i].Set(v)
		}
	}
	return c
}

// Sum returns the total over all tiers.
func (l Limits) Sum() *big.Int {
	sum := new(big.Int)
	for _, v := range l {
		if v != nil {
			sum.Add(sum, v)
		}
	}
	return sum
}

// IsZero reports whether every tier is zero.
func (l Limits) IsZero() bool {
	for _, v := range l {
		if v != nil && v.Sign() != 0 {
			return false
		}
	}
	return true
}

// Equal compares the tier values of l and o.
func (l Limits) Equal(o Limits) bool {
	a, b := l.Copy(), o.Copy()
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			return false
		}
	}
	return true
}

// Validate checks every tier is a valid unsigned 256 bit value.
func (l Limits) Validate() error {
	for i, v := range l {
		if err := ValidateAmount(v); err != nil {
			return fmt.Errorf("tier %d: %w", i, err)
		}
	}
	return nil
}

func (l Limits) String() string {
	c := l.Copy()
	s := make([]string, len(c))
	for i, v := range c {
		s[i] = v.String()
	}
	return "[" + strings.Join(s, " ") + "]"
}

// MarshalJSON encodes the limits as an array of decimal strings.
func (l Limits) MarshalJSON() ([]byte, error) {
	c := l.Copy()
	s := make([]string, len(c))
	for i, v := range c {
		s[i] = v.String()
	}
	return json.Marshal(s)
}

// UnmarshalJSON accepts an array of exactly TierCount decimal numbers,
// quoted or not.
func (l *Limits) UnmarshalJSON(b []byte) error {
	var values []json.Number
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	if len(values) != TierCount {
		return fmt.Errorf("%w: expected %d tier values, got %d", ErrInvalidAmount, TierCount, len(values))
	}
	var parsed Limits
	for i, v := range values {
		n, ok := new(big.Int).SetString(string(v), 10)
		if !ok {
			return fmt.Errorf("%w: tier %d: %q is not an integer", ErrInvalidAmount, i, v)
		}
		parsed[i] = n
	}
	*l = parsed
	return nil
}

// ValidateAmount checks that a is set, non negative and fits in 256 bits.
func ValidateAmount(a *big.Int) error {
	if a == nil {
		return fmt.Errorf("%w: missing value", ErrInvalidAmount)
	}
	if a.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidAmount, a)
	}
	if a.Cmp(maxUint256) > 0 {
		return fmt.Errorf("%w: value exceeds 256 bits", ErrInvalidAmount)
	}
	return nil
}
