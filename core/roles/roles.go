// Package roles holds the privileged identities of the ledger and the
// settings only they may change: the tier configuration and the per
// transaction deposit bounds.
package roles

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/tier"
	"github.com/redesblock/tierswap/core/util/bigint"
)

const stateKey = "roles_state"

var (
	// ErrDeploymentMismatch is returned when the configured owner or
	// validator differ from the ones the state store was created with.
	ErrDeploymentMismatch = errors.New("deployment does not match stored roles")
	errZeroAddress        = errors.New("zero address")
)

// Deployment is the initial configuration of a ledger.
type Deployment struct {
	Owner     common.Address
	Validator common.Address
	Tiers     tier.Config
	MinPerTx  *big.Int
	MaxPerTx  *big.Int
}

// Validate checks the deployment values.
func (d Deployment) Validate() error {
	if d.Owner == (common.Address{}) {
		return fmt.Errorf("owner: %w", errZeroAddress)
	}
	if d.Validator == (common.Address{}) {
		return fmt.Errorf("validator: %w", errZeroAddress)
	}
	if err := d.Tiers.Validate(); err != nil {
		return err
	}
	if err := accounting.ValidateAmount(d.MinPerTx); err != nil {
		return fmt.Errorf("min per tx: %w", err)
	}
	if err := accounting.ValidateAmount(d.MaxPerTx); err != nil {
		return fmt.Errorf("max per tx: %w", err)
	}
	return nil
}

type state struct {
	Owner     common.Address `json:"owner"`
	Validator common.Address `json:"validator"`
	Tiers     tier.Config    `json:"tiers"`
	MinPerTx  *bigint.BigInt `json:"minPerTx"`
	MaxPerTx  *bigint.BigInt `json:"maxPerTx"`
}

func (s state) copy() state {
	s.MinPerTx = bigint.Wrap(new(big.Int).Set(s.MinPerTx.Int))
	s.MaxPerTx = bigint.Wrap(new(big.Int).Set(s.MaxPerTx.Int))
	return s
}

// Registry answers role checks and applies owner changes to the settings.
type Registry struct {
	store  storage.StateStorer
	logger logging.Logger

	mu    sync.RWMutex
	state state
}

// Init loads the stored roles or, on the first start, stores the deployment.
// Tier and bound changes made by the owner survive restarts, so a
// deployment that disagrees with them is only logged.
func Init(store storage.StateStorer, logger logging.Logger, d Deployment) (*Registry, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment: %w", err)
	}

	r := &Registry{
		store:  store,
		logger: logger,
	}

	var s state
	err := store.Get(stateKey, &s)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s = state{
			Owner:     d.Owner,
			Validator: d.Validator,
			Tiers:     d.Tiers,
			MinPerTx:  bigint.Wrap(new(big.Int).Set(d.MinPerTx)),
			MaxPerTx:  bigint.Wrap(new(big.Int).Set(d.MaxPerTx)),
		}
		if err := store.Put(stateKey, s); err != nil {
			return nil, fmt.Errorf("store roles: %w", err)
		}
		logger.Infof("roles: owner %s validator %s", s.Owner, s.Validator)
	case err != nil:
		return nil, fmt.Errorf("load roles: %w", err)
	default:
		if s.MinPerTx == nil || s.MinPerTx.Int == nil || s.MaxPerTx == nil || s.MaxPerTx.Int == nil {
			return nil, errors.New("load roles: missing per transaction bounds")
		}
		if s.Owner != d.Owner {
			return nil, fmt.Errorf("%w: owner %s, stored %s", ErrDeploymentMismatch, d.Owner, s.Owner)
		}
		if s.Validator != d.Validator {
			return nil, fmt.Errorf("%w: validator %s, stored %s", ErrDeploymentMismatch, d.Validator, s.Validator)
		}
		if s.Tiers != d.Tiers {
			logger.Warningf("roles: configured tiers %v differ from stored %v, using stored", d.Tiers, s.Tiers)
		}
		if s.MinPerTx.Cmp(d.MinPerTx) != 0 || s.MaxPerTx.Cmp(d.MaxPerTx) != 0 {
			logger.Warningf("roles: configured bounds [%s, %s] differ from stored [%s, %s], using stored", d.MinPerTx, d.MaxPerTx, s.MinPerTx, s.MaxPerTx)
		}
	}

	r.state = s
	return r, nil
}

// Owner returns the account holding the administrative role.
func (r *Registry) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Owner
}

// Validator returns the account whose signatures initialize allowances.
func (r *Registry) Validator() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Validator
}

// Tiers returns the current tier configuration.
func (r *Registry) Tiers() tier.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Tiers
}

// Limits returns copies of the per transaction deposit bounds.
func (r *Registry) Limits() (minPerTx, maxPerTx *big.Int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.state.MinPerTx.Int), new(big.Int).Set(r.state.MaxPerTx.Int)
}

// CheckOwner returns ErrUnauthorized unless caller is the owner.
func (r *Registry) CheckOwner(caller common.Address) error {
	if caller != r.Owner() {
		return fmt.Errorf("%w: caller %s is not the owner", accounting.ErrUnauthorized, caller)
	}
	return nil
}

// CheckAllowanceAdmin returns ErrUnauthorized unless caller is the owner or
// the validator.
func (r *Registry) CheckAllowanceAdmin(caller common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller != r.state.Owner && caller != r.state.Validator {
		return fmt.Errorf("%w: caller %s is not in owner or validator role", accounting.ErrUnauthorized, caller)
	}
	return nil
}

// CheckAmount checks that amount lies within the inclusive per transaction
// bounds.
func (r *Registry) CheckAmount(amount *big.Int) error {
	if err := accounting.ValidateAmount(amount); err != nil {
		return err
	}
	minPerTx, maxPerTx := r.Limits()
	if amount.Cmp(minPerTx) < 0 {
		return fmt.Errorf("%w: amount %s below minimum %s", accounting.ErrLimitViolation, amount, minPerTx)
	}
	if amount.Cmp(maxPerTx) > 0 {
		return fmt.Errorf("%w: amount %s above maximum %s", accounting.ErrLimitViolation, amount, maxPerTx)
	}
	return nil
}

// SetTierRatio changes the ratio of tier i.
func (r *Registry) SetTierRatio(caller common.Address, i int, ratio uint64) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	if err := tier.CheckIndex(i); err != nil {
		return err
	}
	if ratio == 0 {
		return fmt.Errorf("%w: zero ratio", accounting.ErrInvalidAmount)
	}
	return r.update(func(s *state) {
		s.Tiers[i].Ratio = ratio
	})
}

// EnableTier lets deposits consume tier i.
func (r *Registry) EnableTier(caller common.Address, i int) error {
	return r.setTierEnabled(caller, i, true)
}

// DisableTier stops deposits from consuming tier i.
func (r *Registry) DisableTier(caller common.Address, i int) error {
	return r.setTierEnabled(caller, i, false)
}

func (r *Registry) setTierEnabled(caller common.Address, i int, enabled bool) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	if err := tier.CheckIndex(i); err != nil {
		return err
	}
	return r.update(func(s *state) {
		s.Tiers[i].Enabled = enabled
	})
}

// SetMinPerTx changes the smallest accepted deposit. It is not checked
// against the maximum.
func (r *Registry) SetMinPerTx(caller common.Address, v *big.Int) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	if err := accounting.ValidateAmount(v); err != nil {
		return err
	}
	return r.update(func(s *state) {
		s.MinPerTx.Set(v)
	})
}

// SetMaxPerTx changes the largest accepted deposit. It is not checked
// against the minimum.
func (r *Registry) SetMaxPerTx(caller common.Address, v *big.Int) error {
	if err := r.CheckOwner(caller); err != nil {
		return err
	}
	if err := accounting.ValidateAmount(v); err != nil {
		return err
	}
	return r.update(func(s *state) {
		s.MaxPerTx.Set(v)
	})
}

// update applies f to a copy of the state and keeps it only once stored.
func (r *Registry) update(f func(*state)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.copy()
	f(&next)
	if err := r.store.Put(stateKey, next); err != nil {
		return fmt.Errorf("store roles: %w", err)
	}
	r.state = next
	return nil
}
