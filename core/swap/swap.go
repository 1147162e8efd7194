// Package swap implements the ledger converting deposits into entitlement
// under tiered per account allowances.
package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/claim"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/tier"
	"github.com/redesblock/tierswap/core/token"
	"github.com/redesblock/tierswap/core/tracing"
	"github.com/redesblock/tierswap/core/util/bigint"
)

const keyPrefix = "swap-deposit-"

// DepositRequest asks to convert Amount paid by Receiver under the allowance
// of Signer. Amounts and Signature are the validator signed allowance and
// are only consulted the first time Signer deposits.
type DepositRequest struct {
	Amount    *big.Int
	Receiver  common.Address
	Signer    common.Address
	Amounts   accounting.Limits
	Signature []byte
}

// Receipt records an accepted deposit.
type Receipt struct {
	Sequence  uint64            `json:"sequence"`
	Receiver  common.Address    `json:"receiver"`
	Signer    common.Address    `json:"signer"`
	Requested *bigint.BigInt    `json:"requested"`
	Consumed  *bigint.BigInt    `json:"consumed"`
	Credited  *bigint.BigInt    `json:"credited"`
	Remaining accounting.Limits `json:"remaining"`
	// Initialized is set on the deposit that created the allowance.
	Initialized bool  `json:"initialized"`
	Timestamp   int64 `json:"timestamp"`
}

// Config is the current ledger configuration.
type Config struct {
	Address   common.Address `json:"address"`
	Owner     common.Address `json:"owner"`
	Validator common.Address `json:"validator"`
	Tiers     tier.Config    `json:"tiers"`
	MinPerTx  *big.Int       `json:"-"`
	MaxPerTx  *big.Int       `json:"-"`
}

// Ledger serialises every deposit, administrative change and claim, so
// each of them applies fully or not at all before the next one starts.
type Ledger struct {
	mu sync.Mutex

	address    common.Address
	token      token.Service
	allowances *allowance.Store
	roles      *roles.Registry
	claims     *claim.Service
	store      storage.StateStorer
	logger     logging.Logger
	tracer     *tracing.Tracer
	metrics    metrics
	timeNow    func() time.Time
	sequence   uint64
}

// New creates a Ledger holding deposits at address.
func New(address common.Address, token token.Service, allowances *allowance.Store, roles *roles.Registry, store storage.StateStorer, logger logging.Logger, tracer *tracing.Tracer) (*Ledger, error) {
	l := &Ledger{
		address:    address,
		token:      token,
		allowances: allowances,
		roles:      roles,
		claims:     claim.New(roles, token, address, logger),
		store:      store,
		logger:     logger,
		tracer:     tracer,
		metrics:    newMetrics(),
		timeNow:    time.Now,
	}

	if err := store.Iterate(keyPrefix, func(k, _ []byte) (bool, error) {
		if !strings.HasPrefix(string(k), keyPrefix) {
			return true, nil
		}
		seq, err := strconv.ParseUint(strings.TrimPrefix(string(k), keyPrefix), 10, 64)
		if err != nil {
			return true, fmt.Errorf("invalid deposit key %q: %w", string(k), err)
		}
		if seq > l.sequence {
			l.sequence = seq
		}
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("load deposits: %w", err)
	}

	return l, nil
}

func depositKey(seq uint64) string {
	return fmt.Sprintf("%s%020d", keyPrefix, seq)
}

// DepositWithSignature converts a deposit into entitlement. The amount must
// be within the per transaction bounds. The allowance of the signer is
// loaded, or created from the validator signed amounts on first use, and
// the payment is consumed from its enabled tiers. Only the consumed part is
// taken from the receiver. The allowance is stored after the tokens moved;
// if storing fails the tokens are returned.
func (l *Ledger) DepositWithSignature(ctx context.Context, req DepositRequest) (*Receipt, error) {
	span, logger, ctx := l.tracer.StartSpanFromContext(ctx, "swap-deposit", l.logger)
	defer span.Finish()

	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.deposit(ctx, req)
	if err != nil {
		l.metrics.DepositsRejected.WithLabelValues(reason(err)).Inc()
		logger.Debugf("swap: deposit of %v by %s for %s rejected: %v", req.Amount, req.Receiver, req.Signer, err)
		return nil, err
	}

	l.metrics.Deposits.Inc()
	consumed, _ := new(big.Float).SetInt(r.Consumed.Int).Float64()
	l.metrics.ConsumedAmount.Add(consumed)
	credited, _ := new(big.Float).SetInt(r.Credited.Int).Float64()
	l.metrics.CreditedAmount.Add(credited)

	logger.Infof("swap: deposit %d by %s for %s consumed %s credited %s", r.Sequence, req.Receiver, req.Signer, r.Consumed, r.Credited)
	return r, nil
}

func (l *Ledger) deposit(ctx context.Context, req DepositRequest) (*Receipt, error) {
	if err := l.roles.CheckAmount(req.Amount); err != nil {
		return nil, err
	}

	a, err := l.allowances.GetOrInitialize(req.Signer, req.Amounts, req.Signature, l.roles.Validator())
	if err != nil {
		return nil, err
	}

	tiers := l.roles.Tiers()
	if tier.Capacity(a.Limits, tiers).Sign() == 0 {
		return nil, accounting.ErrCapacityExhausted
	}
	result := tier.Apply(a.Limits, req.Amount, tiers)
	if result.Credited.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit of %s credits nothing", accounting.ErrLimitViolation, req.Amount)
	}

	balance, err := l.token.BalanceOf(ctx, req.Receiver)
	if err != nil {
		return nil, fmt.Errorf("receiver balance: %w", err)
	}
	if balance.Cmp(result.Consumed) < 0 {
		return nil, fmt.Errorf("%w: receiver holds %s, deposit needs %s", accounting.ErrInsufficientBalance, balance, result.Consumed)
	}

	if err := l.token.TransferFrom(ctx, l.address, req.Receiver, l.address, result.Consumed); err != nil {
		return nil, err
	}

	if err := l.allowances.Commit(req.Signer, result.Remaining); err != nil {
		if rerr := l.token.Transfer(ctx, l.address, req.Receiver, result.Consumed); rerr != nil {
			l.logger.Errorf("swap: refund of %s to %s failed: %v", result.Consumed, req.Receiver, rerr)
			return nil, multierror.Append(err, fmt.Errorf("refund: %w", rerr))
		}
		return nil, err
	}

	l.sequence++
	r := &Receipt{
		Sequence:    l.sequence,
		Receiver:    req.Receiver,
		Signer:      req.Signer,
		Requested:   bigint.Wrap(new(big.Int).Set(req.Amount)),
		Consumed:    bigint.Wrap(result.Consumed),
		Credited:    bigint.Wrap(result.Credited),
		Remaining:   result.Remaining.Copy(),
		Initialized: !a.Saved,
		Timestamp:   l.timeNow().Unix(),
	}
	if err := l.store.Put(depositKey(r.Sequence), r); err != nil {
		l.logger.Errorf("swap: record deposit %d: %v", r.Sequence, err)
	}
	return r, nil
}

// Calculate returns the outcome of paying amount against remaining with the
// current tier configuration. Nothing is changed.
func (l *Ledger) Calculate(remaining accounting.Limits, amount *big.Int) (tier.Result, error) {
	if err := remaining.Validate(); err != nil {
		return tier.Result{}, err
	}
	if err := accounting.ValidateAmount(amount); err != nil {
		return tier.Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return tier.Apply(remaining, amount, l.roles.Tiers()), nil
}

// Config returns the current configuration.
func (l *Ledger) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()

	minPerTx, maxPerTx := l.roles.Limits()
	return Config{
		Address:   l.address,
		Owner:     l.roles.Owner(),
		Validator: l.roles.Validator(),
		Tiers:     l.roles.Tiers(),
		MinPerTx:  minPerTx,
		MaxPerTx:  maxPerTx,
	}
}

// Allowance returns the remaining allowance of account. An account that
// never deposited has zero limits and is not saved.
func (l *Ledger) Allowance(account common.Address) (allowance.Allowance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, err := l.allowances.Get(account)
	if errors.Is(err, storage.ErrNotFound) {
		return allowance.Allowance{
			Account: account,
			Limits:  accounting.NewLimits(),
		}, nil
	}
	return a, err
}

// Allowances returns every saved allowance.
func (l *Ledger) Allowances() ([]allowance.Allowance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := make([]allowance.Allowance, 0)
	if err := l.allowances.Iterate(func(a allowance.Allowance) (bool, error) {
		list = append(list, a)
		return false, nil
	}); err != nil {
		return nil, err
	}
	return list, nil
}

// Balance returns the amount of tokens held by the ledger.
func (l *Ledger) Balance(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.token.BalanceOf(ctx, l.address)
}

// Deposits returns the receipts of all accepted deposits in order.
func (l *Ledger) Deposits() ([]Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipts := make([]Receipt, 0)
	if err := l.store.Iterate(keyPrefix, func(k, v []byte) (bool, error) {
		if !strings.HasPrefix(string(k), keyPrefix) {
			return true, nil
		}
		var r Receipt
		if err := json.Unmarshal(v, &r); err != nil {
			return true, fmt.Errorf("invalid deposit value %q: %w", string(k), err)
		}
		receipts = append(receipts, r)
		return false, nil
	}); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (l *Ledger) admin(operation string, caller common.Address, f func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := f(); err != nil {
		l.logger.Debugf("swap: %s by %s: %v", operation, caller, err)
		return err
	}
	l.metrics.AdminUpdates.WithLabelValues(operation).Inc()
	l.logger.Infof("swap: %s by %s", operation, caller)
	return nil
}

// SetTierRatio sets the ratio of tier i. Owner only.
func (l *Ledger) SetTierRatio(caller common.Address, i int, ratio uint64) error {
	return l.admin("set_tier_ratio", caller, func() error {
		return l.roles.SetTierRatio(caller, i, ratio)
	})
}

// EnableTier lets deposits consume tier i. Owner only.
func (l *Ledger) EnableTier(caller common.Address, i int) error {
	return l.admin("enable_tier", caller, func() error {
		return l.roles.EnableTier(caller, i)
	})
}

// DisableTier stops deposits from consuming tier i. Owner only.
func (l *Ledger) DisableTier(caller common.Address, i int) error {
	return l.admin("disable_tier", caller, func() error {
		return l.roles.DisableTier(caller, i)
	})
}

// SetMinPerTx sets the smallest accepted deposit. Owner only.
func (l *Ledger) SetMinPerTx(caller common.Address, v *big.Int) error {
	return l.admin("set_min_per_tx", caller, func() error {
		return l.roles.SetMinPerTx(caller, v)
	})
}

// SetMaxPerTx sets the largest accepted deposit. Owner only.
func (l *Ledger) SetMaxPerTx(caller common.Address, v *big.Int) error {
	return l.admin("set_max_per_tx", caller, func() error {
		return l.roles.SetMaxPerTx(caller, v)
	})
}

// UpdateAllowance overwrites the allowance of account. The caller must be
// the owner or the validator.
func (l *Ledger) UpdateAllowance(caller, account common.Address, limits accounting.Limits) error {
	return l.admin("update_allowance", caller, func() error {
		if err := l.roles.CheckAllowanceAdmin(caller); err != nil {
			return err
		}
		return l.allowances.AdministrativeSet(account, limits)
	})
}

// Claim sends held tokens to destination, see claim.Service.
func (l *Ledger) Claim(ctx context.Context, caller, destination common.Address, amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	claimed, err := l.claims.Claim(ctx, caller, destination, amount)
	if err != nil {
		l.logger.Debugf("swap: claim by %s: %v", caller, err)
		return nil, err
	}
	l.metrics.Claims.Inc()
	c, _ := new(big.Float).SetInt(claimed).Float64()
	l.metrics.ClaimedAmount.Add(c)
	return claimed, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, accounting.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, accounting.ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, accounting.ErrLimitViolation):
		return "limit_violation"
	case errors.Is(err, accounting.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, accounting.ErrInvalidAmount), errors.Is(err, accounting.ErrInvalidTier):
		return "invalid_argument"
	default:
		return "internal"
	}
}
