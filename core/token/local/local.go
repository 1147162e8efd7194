// Package local implements a token ledger on top of the state store, used
// when the node runs without an external token.
package local

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/token"
	"github.com/redesblock/tierswap/core/util/bigint"
)

const (
	balanceKeyPrefix   = "token_balance_"
	allowanceKeyPrefix = "token_allowance_"
)

var _ token.Administrator = (*Ledger)(nil)

func balanceKey(account common.Address) string {
	return fmt.Sprintf("%s%x", balanceKeyPrefix, account.Bytes())
}

func allowanceKey(holder, spender common.Address) string {
	return fmt.Sprintf("%s%x_%x", allowanceKeyPrefix, holder.Bytes(), spender.Bytes())
}

// Ledger is a token.Administrator keeping balances and allowances in a
// state store.
type Ledger struct {
	mu     sync.Mutex
	store  storage.StateStorer
	logger logging.Logger
}

func New(store storage.StateStorer, logger logging.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
	}
}

func (l *Ledger) get(key string) (*big.Int, error) {
	var v bigint.BigInt
	err := l.store.Get(key, &v)
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return v.Int, nil
}

func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.get(balanceKey(account))
}

func (l *Ledger) Allowance(_ context.Context, holder, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.get(allowanceKey(holder, spender))
}

// write stores every value in order. When a write fails the values written
// before it are restored.
func (l *Ledger) write(keys []string, values []*big.Int) error {
	previous := make([]*big.Int, 0, len(keys))
	for i, k := range keys {
		p, err := l.get(k)
		if err != nil {
			return err
		}
		if err := l.store.Put(k, bigint.Wrap(values[i])); err != nil {
			for j := range previous {
				if rerr := l.store.Put(keys[j], bigint.Wrap(previous[j])); rerr != nil {
					l.logger.Errorf("token: restore %s: %v", keys[j], rerr)
				}
			}
			return err
		}
		previous = append(previous, p)
	}
	return nil
}

func (l *Ledger) TransferFrom(_ context.Context, spender, holder, recipient common.Address, amount *big.Int) error {
	if err := accounting.ValidateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance, err := l.get(allowanceKey(holder, spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s of %s for %s below %s", accounting.ErrInsufficientBalance, allowance, spender, holder, amount)
	}

	keys, values, err := l.move(holder, recipient, amount)
	if err != nil {
		return err
	}
	keys = append(keys, allowanceKey(holder, spender))
	values = append(values, new(big.Int).Sub(allowance, amount))

	if err := l.write(keys, values); err != nil {
		return fmt.Errorf("transfer from: %w", err)
	}
	l.logger.Tracef("token: %s moved %s from %s to %s", spender, amount, holder, recipient)
	return nil
}

func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if err := accounting.ValidateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	keys, values, err := l.move(from, to, amount)
	if err != nil {
		return err
	}
	if err := l.write(keys, values); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	l.logger.Tracef("token: transferred %s from %s to %s", amount, from, to)
	return nil
}

// move computes the balance updates of a transfer without writing them.
func (l *Ledger) move(from, to common.Address, amount *big.Int) ([]string, []*big.Int, error) {
	fromBalance, err := l.get(balanceKey(from))
	if err != nil {
		return nil, nil, err
	}
	if fromBalance.Cmp(amount) < 0 {
		return nil, nil, fmt.Errorf("%w: balance %s of %s below %s", accounting.ErrInsufficientBalance, fromBalance, from, amount)
	}
	if from == to {
		return nil, nil, nil
	}
	toBalance, err := l.get(balanceKey(to))
	if err != nil {
		return nil, nil, err
	}
	return []string{balanceKey(from), balanceKey(to)},
		[]*big.Int{new(big.Int).Sub(fromBalance, amount), new(big.Int).Add(toBalance, amount)},
		nil
}

func (l *Ledger) Mint(_ context.Context, to common.Address, amount *big.Int) error {
	if err := accounting.ValidateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.get(balanceKey(to))
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	if err := accounting.ValidateAmount(balance); err != nil {
		return err
	}
	return l.write([]string{balanceKey(to)}, []*big.Int{balance})
}

func (l *Ledger) Approve(_ context.Context, holder, spender common.Address, amount *big.Int) error {
	if err := accounting.ValidateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.write([]string{allowanceKey(holder, spender)}, []*big.Int{new(big.Int).Set(amount)})
}

// Balances returns every non zero balance keyed by account.
func (l *Ledger) Balances() (map[common.Address]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[common.Address]*big.Int)
	if err := l.store.Iterate(balanceKeyPrefix, func(k, v []byte) (bool, error) {
		if !strings.HasPrefix(string(k), balanceKeyPrefix) {
			return true, nil
		}
		var b bigint.BigInt
		if err := b.UnmarshalJSON(v); err != nil {
			return true, fmt.Errorf("invalid balance value %q: %w", string(k), err)
		}
		if b.Sign() != 0 {
			balances[common.HexToAddress(strings.TrimPrefix(string(k), balanceKeyPrefix))] = b.Int
		}
		return false, nil
	}); err != nil {
		return nil, err
	}
	return balances, nil
}
