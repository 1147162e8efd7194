// Package allowance keeps the per account tier allowances. An account gets its
// allowance from a validator signature the first time it deposits; afterwards
// the stored remaining amounts are authoritative.
package allowance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/signature"
	"github.com/redesblock/tierswap/core/storage"
)

const (
	keyPrefix = "allowance_"

	// DefaultCacheSize is the number of allowances kept in the read cache.
	DefaultCacheSize = 1024
)

// Allowance is the remaining per tier amount of an account.
type Allowance struct {
	Account common.Address    `json:"account"`
	Limits  accounting.Limits `json:"limits"`
	// Saved is set once the allowance has been written, either by a deposit
	// or by an administrator.
	Saved bool `json:"saved"`
}

func (a Allowance) copy() Allowance {
	a.Limits = a.Limits.Copy()
	return a
}

func allowanceKey(account common.Address) string {
	return fmt.Sprintf("%s%x", keyPrefix, account.Bytes())
}

// Store reads and writes allowances through the state store.
type Store struct {
	store    storage.StateStorer
	verifier signature.Verifier
	cache    *lru.Cache
	logger   logging.Logger
	metrics  metrics
}

// New creates an allowance Store. A non positive cacheSize uses
// DefaultCacheSize.
func New(store storage.StateStorer, verifier signature.Verifier, logger logging.Logger, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		store:    store,
		verifier: verifier,
		cache:    cache,
		logger:   logger,
		metrics:  newMetrics(),
	}, nil
}

// Get returns the stored allowance of account or storage.ErrNotFound.
func (s *Store) Get(account common.Address) (Allowance, error) {
	if v, ok := s.cache.Get(account); ok {
		s.metrics.CacheHits.Inc()
		return v.(Allowance).copy(), nil
	}
	s.metrics.CacheMisses.Inc()

	var a Allowance
	if err := s.store.Get(allowanceKey(account), &a); err != nil {
		return Allowance{}, err
	}
	a.Account = account
	a.Limits = a.Limits.Copy()
	s.cache.Add(account, a.copy())
	return a, nil
}

// GetOrInitialize returns the stored allowance of account. When there is
// none, signed must carry a validator signature over account and amounts
// and the returned allowance holds amounts with Saved false. Nothing is
// written until Commit.
func (s *Store) GetOrInitialize(account common.Address, amounts accounting.Limits, signed []byte, validator common.Address) (Allowance, error) {
	a, err := s.Get(account)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Allowance{}, err
	}

	if err := amounts.Validate(); err != nil {
		return Allowance{}, err
	}
	ok, err := s.verifier.Verify(account, amounts, signed, validator)
	if err != nil {
		return Allowance{}, err
	}
	if !ok {
		s.metrics.SignatureRejections.Inc()
		s.logger.Debugf("allowance: signature for %s not from validator %s", account, validator)
		return Allowance{}, fmt.Errorf("%w: invalid validator signature", accounting.ErrUnauthorized)
	}

	return Allowance{
		Account: account,
		Limits:  amounts.Copy(),
	}, nil
}

// Commit stores limits as the remaining allowance of account.
func (s *Store) Commit(account common.Address, limits accounting.Limits) error {
	if err := s.put(account, limits); err != nil {
		return err
	}
	s.metrics.Commits.Inc()
	return nil
}

// AdministrativeSet overwrites the allowance of account, creating it if it
// does not exist.
func (s *Store) AdministrativeSet(account common.Address, limits accounting.Limits) error {
	if err := s.put(account, limits); err != nil {
		return err
	}
	s.metrics.AdministrativeUpdates.Inc()
	s.logger.Debugf("allowance: %s set to %s", account, limits)
	return nil
}

func (s *Store) put(account common.Address, limits accounting.Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	a := Allowance{
		Account: account,
		Limits:  limits.Copy(),
		Saved:   true,
	}
	if err := s.store.Put(allowanceKey(account), a); err != nil {
		s.cache.Remove(account)
		return fmt.Errorf("store allowance: %w", err)
	}
	s.cache.Add(account, a)
	return nil
}

// Iterate calls fn for every stored allowance in account order until fn
// returns stop.
func (s *Store) Iterate(fn func(Allowance) (stop bool, err error)) error {
	return s.store.Iterate(keyPrefix, func(k, v []byte) (bool, error) {
		if !strings.HasPrefix(string(k), keyPrefix) {
			return true, nil
		}
		account := common.HexToAddress(strings.TrimPrefix(string(k), keyPrefix))

		var a Allowance
		if err := json.Unmarshal(v, &a); err != nil {
			return true, fmt.Errorf("invalid allowance value %q: %w", string(k), err)
		}
		a.Account = account
		a.Limits = a.Limits.Copy()
		return fn(a)
	})
}
