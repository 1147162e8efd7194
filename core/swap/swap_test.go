package swap_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/crypto"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/signature"
	"github.com/redesblock/tierswap/core/statestore/mock"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/swap"
	"github.com/redesblock/tierswap/core/tier"
	"github.com/redesblock/tierswap/core/token"
	"github.com/redesblock/tierswap/core/token/local"
	tokenmock "github.com/redesblock/tierswap/core/token/mock"
)

var (
	owner         = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ledgerAddress = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	account       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	otherAccount  = common.HexToAddress("0x0000000000000000000000000000000000000003")
	stranger      = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

// failingStore fails writes of keys with the prefix once enabled.
type failingStore struct {
	storage.StateStorer
	mu     sync.Mutex
	prefix string
	err    error
}

func (s *failingStore) fail(prefix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefix, s.err = prefix, err
}

func (s *failingStore) Put(key string, i interface{}) error {
	s.mu.Lock()
	err := s.err
	prefix := s.prefix
	s.mu.Unlock()
	if err != nil && strings.HasPrefix(key, prefix) {
		return err
	}
	return s.StateStorer.Put(key, i)
}

type testLedger struct {
	*swap.Ledger
	store         *failingStore
	token         token.Administrator
	validator     crypto.Signer
	validatorAddr common.Address
}

type ledgerOptions struct {
	store    storage.StateStorer
	token    token.Administrator
	enabled  []bool
	minPerTx int64
	maxPerTx int64
}

func newLedger(t *testing.T, o ledgerOptions) *testLedger {
	t.Helper()

	logger := logging.New(io.Discard, 0)
	if o.store == nil {
		o.store = mock.NewStateStore()
	}
	store := &failingStore{StateStorer: o.store}
	if o.token == nil {
		o.token = local.New(store, logger)
	}
	if o.enabled == nil {
		o.enabled = []bool{true, true, true}
	}
	if o.minPerTx == 0 {
		o.minPerTx = 1
	}
	if o.maxPerTx == 0 {
		o.maxPerTx = 1000
	}

	key, err := crypto.DecodeHexPrivateKey("0xaf0eb7e81bb006606dda456218665a08feb04abfda14e16f938eeb70641a768f")
	if err != nil {
		t.Fatal(err)
	}
	validator := crypto.NewDefaultSigner(key)
	validatorAddr, err := validator.EthereumAddress()
	if err != nil {
		t.Fatal(err)
	}

	tiers, err := tier.NewConfig([]uint64{1, 3, 5}, o.enabled)
	if err != nil {
		t.Fatal(err)
	}
	r, err := roles.Init(store, logger, roles.Deployment{
		Owner:     owner,
		Validator: validatorAddr,
		Tiers:     tiers,
		MinPerTx:  big.NewInt(o.minPerTx),
		MaxPerTx:  big.NewInt(o.maxPerTx),
	})
	if err != nil {
		t.Fatal(err)
	}
	allowances, err := allowance.New(store, signature.NewVerifier(), logger, 0)
	if err != nil {
		t.Fatal(err)
	}
	l, err := swap.New(ledgerAddress, o.token, allowances, r, store, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testLedger{
		Ledger:        l,
		store:         store,
		token:         o.token,
		validator:     validator,
		validatorAddr: validatorAddr,
	}
}

func (l *testLedger) sign(t *testing.T, a common.Address, amounts accounting.Limits) []byte {
	t.Helper()
	sig, err := signature.Sign(l.validator, a, amounts)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func (l *testLedger) fund(t *testing.T, a common.Address, amount int64) {
	t.Helper()
	ctx := context.Background()
	if err := l.token.Mint(ctx, a, big.NewInt(amount)); err != nil {
		t.Fatal(err)
	}
	if err := l.token.Approve(ctx, a, ledgerAddress, big.NewInt(amount)); err != nil {
		t.Fatal(err)
	}
}

func (l *testLedger) expectBalance(t *testing.T, a common.Address, want int64) {
	t.Helper()
	got, err := l.token.BalanceOf(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != want {
		t.Fatalf("balance of %s: got %s, want %d", a, got, want)
	}
}

func (l *testLedger) expectAllowance(t *testing.T, a common.Address, want accounting.Limits, saved bool) {
	t.Helper()
	got, err := l.Allowance(a)
	if err != nil {
		t.Fatal(err)
	}
	if got.Saved != saved {
		t.Fatalf("allowance of %s: got saved %v, want %v", a, got.Saved, saved)
	}
	if !got.Limits.Equal(want) {
		t.Fatalf("allowance of %s: got %s, want %s", a, got.Limits, want)
	}
}

func (l *testLedger) deposit(t *testing.T, amount int64, receiver, signer common.Address, amounts accounting.Limits, sig []byte) (*swap.Receipt, error) {
	t.Helper()
	return l.DepositWithSignature(context.Background(), swap.DepositRequest{
		Amount:    big.NewInt(amount),
		Receiver:  receiver,
		Signer:    signer,
		Amounts:   amounts,
		Signature: sig,
	})
}

func TestDepositWithSignature(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	l.SetTimeNow(func() time.Time { return time.Unix(1600000000, 0) })
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, account, 1000)

	r, err := l.deposit(t, 100, account, account, amounts, l.sign(t, account, amounts))
	if err != nil {
		t.Fatal(err)
	}

	if r.Consumed.Int64() != 90 {
		t.Fatalf("got consumed %s, want 90", r.Consumed)
	}
	if r.Credited.Int64() != 30 {
		t.Fatalf("got credited %s, want 30", r.Credited)
	}
	if !r.Initialized {
		t.Fatal("first deposit not marked as initializing the allowance")
	}
	if r.Sequence != 1 || r.Timestamp != 1600000000 {
		t.Fatalf("got receipt %+v", r)
	}

	l.expectBalance(t, account, 910)
	l.expectBalance(t, ledgerAddress, 90)
	l.expectAllowance(t, account, accounting.NewLimits(0, 0, 0), true)

	deposits, err := l.Deposits()
	if err != nil {
		t.Fatal(err)
	}
	if len(deposits) != 1 || deposits[0].Credited.Int64() != 30 || deposits[0].Receiver != account {
		t.Fatalf("got deposits %+v", deposits)
	}
}

func TestDepositDelegatedReceiver(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, otherAccount, 1000)

	if _, err := l.deposit(t, 15, otherAccount, account, amounts, l.sign(t, account, amounts)); err != nil {
		t.Fatal(err)
	}

	l.expectBalance(t, otherAccount, 985)
	l.expectAllowance(t, account, accounting.NewLimits(0, 25, 50), true)
	l.expectAllowance(t, otherAccount, accounting.NewLimits(), false)
}

func TestDepositRejections(t *testing.T) {
	amounts := accounting.NewLimits(10, 30, 50)

	for _, tc := range []struct {
		name    string
		opts    ledgerOptions
		fund    int64
		amount  int64
		signFor common.Address
		signer  func(*testLedger) crypto.Signer
		wantErr error
	}{
		{
			name:    "insufficient balance",
			amount:  100,
			wantErr: accounting.ErrInsufficientBalance,
		},
		{
			name:    "below minimum",
			opts:    ledgerOptions{minPerTx: 20},
			fund:    1000,
			amount:  10,
			wantErr: accounting.ErrLimitViolation,
		},
		{
			name:    "above maximum",
			fund:    10000,
			amount:  2000,
			wantErr: accounting.ErrLimitViolation,
		},
		{
			name:    "signature for another account",
			fund:    1000,
			amount:  100,
			signFor: otherAccount,
			wantErr: accounting.ErrUnauthorized,
		},
		{
			name:   "signature by another key",
			fund:   1000,
			amount: 100,
			signer: func(*testLedger) crypto.Signer {
				key, err := crypto.GenerateSecp256k1Key()
				if err != nil {
					panic(err)
				}
				return crypto.NewDefaultSigner(key)
			},
			wantErr: accounting.ErrUnauthorized,
		},
		{
			name:    "all tiers disabled",
			opts:    ledgerOptions{enabled: []bool{false, false, false}},
			fund:    1000,
			amount:  100,
			wantErr: accounting.ErrCapacityExhausted,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := newLedger(t, tc.opts)
			if tc.fund > 0 {
				l.fund(t, account, tc.fund)
			} else if err := l.token.Approve(context.Background(), account, ledgerAddress, big.NewInt(1000)); err != nil {
				t.Fatal(err)
			}

			signFor := account
			if tc.signFor != (common.Address{}) {
				signFor = tc.signFor
			}
			signer := l.validator
			if tc.signer != nil {
				signer = tc.signer(l)
			}
			sig, err := signature.Sign(signer, signFor, amounts)
			if err != nil {
				t.Fatal(err)
			}

			_, err = l.deposit(t, tc.amount, account, account, amounts, sig)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v, want %v", err, tc.wantErr)
			}

			l.expectBalance(t, account, tc.fund)
			l.expectBalance(t, ledgerAddress, 0)
			l.expectAllowance(t, account, accounting.NewLimits(), false)

			deposits, err := l.Deposits()
			if err != nil {
				t.Fatal(err)
			}
			if len(deposits) != 0 {
				t.Fatalf("got %d deposits", len(deposits))
			}
		})
	}
}

func TestDepositLimitsSaved(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, account, 1000)

	if _, err := l.deposit(t, 20, account, account, amounts, l.sign(t, account, amounts)); err != nil {
		t.Fatal(err)
	}
	l.expectBalance(t, account, 980)
	l.expectAllowance(t, account, accounting.NewLimits(0, 20, 50), true)

	// the stored allowance is used and the supplied one ignored
	larger := accounting.NewLimits(1000, 1000, 1000)
	r, err := l.deposit(t, 20, account, account, larger, []byte("not a signature"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Initialized {
		t.Fatal("second deposit marked as initializing")
	}
	if r.Credited.Int64() != 6 {
		t.Fatalf("got credited %s, want 6", r.Credited)
	}
	l.expectBalance(t, account, 960)
	l.expectAllowance(t, account, accounting.NewLimits(0, 0, 50), true)
}

func TestDepositLimitReached(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	sig := l.sign(t, account, amounts)
	l.fund(t, account, 1000)

	if _, err := l.deposit(t, 90, account, account, amounts, sig); err != nil {
		t.Fatal(err)
	}
	if _, err := l.deposit(t, 10, account, account, amounts, sig); !errors.Is(err, accounting.ErrCapacityExhausted) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrCapacityExhausted)
	}
	l.expectBalance(t, account, 910)
}

func TestDepositZeroCredit(t *testing.T) {
	l := newLedger(t, ledgerOptions{enabled: []bool{false, true, true}})
	amounts := accounting.NewLimits(10, 2, 4)
	l.fund(t, account, 1000)

	_, err := l.deposit(t, 6, account, account, amounts, l.sign(t, account, amounts))
	if !errors.Is(err, accounting.ErrLimitViolation) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrLimitViolation)
	}
	if errors.Is(err, accounting.ErrCapacityExhausted) {
		t.Fatal("zero credit reported as exhausted capacity")
	}
	l.expectBalance(t, account, 1000)
	l.expectAllowance(t, account, accounting.NewLimits(), false)
}

func TestDepositCommitFailureRefunds(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, account, 1000)

	commitErr := errors.New("allowance write failed")
	l.store.fail("allowance_", commitErr)

	_, err := l.deposit(t, 50, account, account, amounts, l.sign(t, account, amounts))
	if !errors.Is(err, commitErr) {
		t.Fatalf("got error %v, want %v", err, commitErr)
	}

	l.expectBalance(t, account, 1000)
	l.expectBalance(t, ledgerAddress, 0)

	l.store.fail("", nil)
	l.expectAllowance(t, account, accounting.NewLimits(), false)
}

func TestDepositTransferError(t *testing.T) {
	transferErr := errors.New("token unavailable")
	tok := tokenmock.NewToken(
		tokenmock.WithBalances(map[common.Address]*big.Int{account: big.NewInt(1000)}),
		tokenmock.WithTransferFromFunc(func(spender, holder, recipient common.Address, amount *big.Int) error {
			return transferErr
		}),
	)
	l := newLedger(t, ledgerOptions{token: tok})
	amounts := accounting.NewLimits(10, 30, 50)

	if _, err := l.deposit(t, 50, account, account, amounts, l.sign(t, account, amounts)); !errors.Is(err, transferErr) {
		t.Fatalf("got error %v, want %v", err, transferErr)
	}
	l.expectAllowance(t, account, accounting.NewLimits(), false)
}

func TestDepositJournalSurvivesRestart(t *testing.T) {
	store := mock.NewStateStore()
	l := newLedger(t, ledgerOptions{store: store})
	amounts := accounting.NewLimits(10, 30, 50)
	sig := l.sign(t, account, amounts)
	l.fund(t, account, 1000)

	for i := 0; i < 2; i++ {
		if _, err := l.deposit(t, 5, account, account, amounts, sig); err != nil {
			t.Fatal(err)
		}
	}

	l = newLedger(t, ledgerOptions{store: store, token: l.token})
	r, err := l.deposit(t, 5, account, account, amounts, sig)
	if err != nil {
		t.Fatal(err)
	}
	if r.Sequence != 3 {
		t.Fatalf("got sequence %d, want 3", r.Sequence)
	}

	deposits, err := l.Deposits()
	if err != nil {
		t.Fatal(err)
	}
	if len(deposits) != 3 {
		t.Fatalf("got %d deposits, want 3", len(deposits))
	}
	for i, d := range deposits {
		if d.Sequence != uint64(i+1) {
			t.Fatalf("deposit %d has sequence %d", i, d.Sequence)
		}
	}
}

func TestConcurrentDeposits(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	sig := l.sign(t, account, amounts)
	l.fund(t, account, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.deposit(t, 5, account, account, amounts, sig)
		}()
	}
	wg.Wait()

	// the whole allowance is consumed exactly once
	l.expectBalance(t, account, 910)
	l.expectBalance(t, ledgerAddress, 90)
	l.expectAllowance(t, account, accounting.NewLimits(0, 0, 0), true)
}

func TestUpdateAllowance(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	limits := accounting.NewLimits(10, 30, 50)

	if err := l.UpdateAllowance(stranger, account, limits); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrUnauthorized)
	}
	l.expectAllowance(t, account, accounting.NewLimits(), false)

	if err := l.UpdateAllowance(owner, account, limits); err != nil {
		t.Fatal(err)
	}
	l.expectAllowance(t, account, limits, true)

	for i := 0; i < 2; i++ {
		if err := l.UpdateAllowance(l.validatorAddr, account, accounting.NewLimits(1, 2, 3)); err != nil {
			t.Fatal(err)
		}
		l.expectAllowance(t, account, accounting.NewLimits(1, 2, 3), true)
	}

	allowances, err := l.Allowances()
	if err != nil {
		t.Fatal(err)
	}
	if len(allowances) != 1 || allowances[0].Account != account {
		t.Fatalf("got allowances %+v", allowances)
	}
}

func TestAdministrativeSettings(t *testing.T) {
	l := newLedger(t, ledgerOptions{})

	if err := l.SetTierRatio(stranger, 0, 2); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrUnauthorized)
	}
	if err := l.SetTierRatio(l.validatorAddr, 0, 2); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrUnauthorized)
	}

	if err := l.SetTierRatio(owner, 0, 2); err != nil {
		t.Fatal(err)
	}
	if err := l.DisableTier(owner, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.SetMinPerTx(owner, big.NewInt(5)); err != nil {
		t.Fatal(err)
	}
	if err := l.SetMaxPerTx(owner, big.NewInt(500)); err != nil {
		t.Fatal(err)
	}

	cfg := l.Config()
	if cfg.Tiers[0].Ratio != 2 || cfg.Tiers[1].Enabled {
		t.Fatalf("got tiers %v", cfg.Tiers)
	}
	if cfg.MinPerTx.Int64() != 5 || cfg.MaxPerTx.Int64() != 500 {
		t.Fatalf("got bounds [%s, %s]", cfg.MinPerTx, cfg.MaxPerTx)
	}
	if cfg.Owner != owner || cfg.Validator != l.validatorAddr || cfg.Address != ledgerAddress {
		t.Fatalf("got config %+v", cfg)
	}

	if err := l.EnableTier(owner, 1); err != nil {
		t.Fatal(err)
	}
	if !l.Config().Tiers[1].Enabled {
		t.Fatal("tier not enabled")
	}

	// deposits follow the updated settings
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, account, 1000)
	if err := l.DisableTier(owner, 0); err != nil {
		t.Fatal(err)
	}
	r, err := l.deposit(t, 9, account, account, amounts, l.sign(t, account, amounts))
	if err != nil {
		t.Fatal(err)
	}
	if r.Credited.Int64() != 3 {
		t.Fatalf("got credited %s, want 3", r.Credited)
	}
	l.expectAllowance(t, account, accounting.NewLimits(10, 21, 50), true)
}

func TestCalculate(t *testing.T) {
	l := newLedger(t, ledgerOptions{})

	got, err := l.Calculate(accounting.NewLimits(10, 30, 50), big.NewInt(100))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Remaining.IsZero() || got.Consumed.Int64() != 90 || got.Credited.Int64() != 30 {
		t.Fatalf("got %+v", got)
	}

	if _, err := l.Calculate(accounting.NewLimits(10, 30, 50), big.NewInt(-1)); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInvalidAmount)
	}
	if _, err := l.Calculate(accounting.NewLimits(10, -30, 50), big.NewInt(1)); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInvalidAmount)
	}
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, ledgerOptions{})
	amounts := accounting.NewLimits(10, 30, 50)
	l.fund(t, account, 1000)

	if _, err := l.deposit(t, 90, account, account, amounts, l.sign(t, account, amounts)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Claim(ctx, l.validatorAddr, stranger, big.NewInt(0)); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrUnauthorized)
	}
	if _, err := l.Claim(ctx, owner, stranger, big.NewInt(91)); !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInsufficientBalance)
	}

	claimed, err := l.Claim(ctx, owner, stranger, big.NewInt(40))
	if err != nil {
		t.Fatal(err)
	}
	if claimed.Int64() != 40 {
		t.Fatalf("got claimed %s, want 40", claimed)
	}

	claimed, err = l.Claim(ctx, owner, owner, big.NewInt(0))
	if err != nil {
		t.Fatal(err)
	}
	if claimed.Int64() != 50 {
		t.Fatalf("got claimed %s, want 50", claimed)
	}

	balance, err := l.Balance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("got ledger balance %s, want 0", balance)
	}
	l.expectBalance(t, stranger, 40)
	l.expectBalance(t, owner, 50)

	if _, err := l.Claim(ctx, owner, owner, big.NewInt(0)); !errors.Is(err, accounting.ErrLimitViolation) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrLimitViolation)
	}
}

func TestMetrics(t *testing.T) {
	l := newLedger(t, ledgerOptions{})
	if got := len(l.Metrics()); got != 7 {
		t.Fatalf("got %d collectors, want 7", got)
	}
}
