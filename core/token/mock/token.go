// Package mock provides a mock implementation for the
// token interface.
package mock

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/token"
)

var _ token.Administrator = (*Service)(nil)

type allowanceKey struct {
	holder, spender common.Address
}

// Service is the mock token service. Methods without a configured function
// operate on in-memory balances and allowances.
type Service struct {
	lock             sync.Mutex
	balances         map[common.Address]*big.Int
	allowances       map[allowanceKey]*big.Int
	balanceOfFunc    func(common.Address) (*big.Int, error)
	transferFromFunc func(spender, holder, recipient common.Address, amount *big.Int) error
	transferFunc     func(from, to common.Address, amount *big.Int) error
}

// Option is the option passed to the mock token service.
type Option interface {
	apply(*Service)
}

type optionFunc func(*Service)

func (f optionFunc) apply(r *Service) { f(r) }

// WithBalanceOfFunc sets the mock BalanceOf function
func WithBalanceOfFunc(f func(common.Address) (*big.Int, error)) Option {
	return optionFunc(func(s *Service) {
		s.balanceOfFunc = f
	})
}

// WithTransferFromFunc sets the mock TransferFrom function
func WithTransferFromFunc(f func(spender, holder, recipient common.Address, amount *big.Int) error) Option {
	return optionFunc(func(s *Service) {
		s.transferFromFunc = f
	})
}

// WithTransferFunc sets the mock Transfer function
func WithTransferFunc(f func(from, to common.Address, amount *big.Int) error) Option {
	return optionFunc(func(s *Service) {
		s.transferFunc = f
	})
}

// WithBalances sets the initial balances.
func WithBalances(balances map[common.Address]*big.Int) Option {
	return optionFunc(func(s *Service) {
		for a, b := range balances {
			s.balances[a] = new(big.Int).Set(b)
		}
	})
}

// NewToken creates the mock token service.
func NewToken(opts ...Option) *Service {
	mock := &Service{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
	for _, o := range opts {
		o.apply(mock)
	}
	return mock
}

func (s *Service) balance(a common.Address) *big.Int {
	if b, ok := s.balances[a]; ok {
		return b
	}
	return new(big.Int)
}

// BalanceOf is the mock function wrapper that calls the set implementation
func (s *Service) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	if s.balanceOfFunc != nil {
		return s.balanceOfFunc(account)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return new(big.Int).Set(s.balance(account)), nil
}

func (s *Service) Allowance(_ context.Context, holder, spender common.Address) (*big.Int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if a, ok := s.allowances[allowanceKey{holder, spender}]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

// TransferFrom is the mock function wrapper that calls the set implementation
func (s *Service) TransferFrom(_ context.Context, spender, holder, recipient common.Address, amount *big.Int) error {
	if s.transferFromFunc != nil {
		return s.transferFromFunc(spender, holder, recipient, amount)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	key := allowanceKey{holder, spender}
	allowance, ok := s.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance", accounting.ErrInsufficientBalance)
	}
	if err := s.move(holder, recipient, amount); err != nil {
		return err
	}
	s.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

// Transfer is the mock function wrapper that calls the set implementation
func (s *Service) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if s.transferFunc != nil {
		return s.transferFunc(from, to, amount)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.move(from, to, amount)
}

func (s *Service) move(from, to common.Address, amount *big.Int) error {
	fromBalance := s.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance", accounting.ErrInsufficientBalance)
	}
	s.balances[from] = new(big.Int).Sub(fromBalance, amount)
	s.balances[to] = new(big.Int).Add(s.balance(to), amount)
	return nil
}

func (s *Service) Mint(_ context.Context, to common.Address, amount *big.Int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.balances[to] = new(big.Int).Add(s.balance(to), amount)
	return nil
}

func (s *Service) Approve(_ context.Context, holder, spender common.Address, amount *big.Int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.allowances[allowanceKey{holder, spender}] = new(big.Int).Set(amount)
	return nil
}
