package local_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/statestore/mock"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/token/local"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	ledger = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func newLedger(t *testing.T, store storage.StateStorer) *local.Ledger {
	t.Helper()
	return local.New(store, logging.New(io.Discard, 0))
}

func expectBalance(t *testing.T, l *local.Ledger, a common.Address, want int64) {
	t.Helper()
	got, err := l.BalanceOf(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != want {
		t.Fatalf("balance of %s: got %s, want %d", a, got, want)
	}
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, mock.NewStateStore())

	expectBalance(t, l, alice, 0)
	if err := l.Mint(ctx, alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(ctx, alice, bob, big.NewInt(40)); err != nil {
		t.Fatal(err)
	}
	expectBalance(t, l, alice, 60)
	expectBalance(t, l, bob, 40)

	if err := l.Transfer(ctx, alice, bob, big.NewInt(61)); !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInsufficientBalance)
	}
	expectBalance(t, l, alice, 60)
	expectBalance(t, l, bob, 40)

	if err := l.Transfer(ctx, alice, alice, big.NewInt(60)); err != nil {
		t.Fatal(err)
	}
	expectBalance(t, l, alice, 60)

	if err := l.Transfer(ctx, alice, bob, big.NewInt(-1)); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInvalidAmount)
	}
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, mock.NewStateStore())

	if err := l.Mint(ctx, alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// no allowance
	if err := l.TransferFrom(ctx, ledger, alice, ledger, big.NewInt(10)); !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInsufficientBalance)
	}

	if err := l.Approve(ctx, alice, ledger, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(ctx, ledger, alice, ledger, big.NewInt(30)); err != nil {
		t.Fatal(err)
	}
	expectBalance(t, l, alice, 70)
	expectBalance(t, l, ledger, 30)

	allowance, err := l.Allowance(ctx, alice, ledger)
	if err != nil {
		t.Fatal(err)
	}
	if allowance.Int64() != 20 {
		t.Fatalf("got allowance %s, want 20", allowance)
	}

	// over allowance
	if err := l.TransferFrom(ctx, ledger, alice, ledger, big.NewInt(21)); !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInsufficientBalance)
	}

	// over balance
	if err := l.Approve(ctx, alice, ledger, big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(ctx, ledger, alice, ledger, big.NewInt(71)); !errors.Is(err, accounting.ErrInsufficientBalance) {
		t.Fatalf("got error %v, want %v", err, accounting.ErrInsufficientBalance)
	}
	expectBalance(t, l, alice, 70)
	expectBalance(t, l, ledger, 30)
}

type failingStore struct {
	storage.StateStorer
	failAt int
	puts   int
}

func (s *failingStore) Put(key string, i interface{}) error {
	s.puts++
	if s.puts == s.failAt {
		return errors.New("write failed")
	}
	return s.StateStorer.Put(key, i)
}

func TestTransferRestoresOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{StateStorer: mock.NewStateStore()}
	l := newLedger(t, store)

	if err := l.Mint(ctx, alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// the debit succeeds, the credit fails and the debit is restored
	store.puts = 0
	store.failAt = 2
	if err := l.Transfer(ctx, alice, bob, big.NewInt(40)); err == nil {
		t.Fatal("expected error")
	}
	store.failAt = 0

	expectBalance(t, l, alice, 100)
	expectBalance(t, l, bob, 0)
}

func TestBalances(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStateStore()
	l := newLedger(t, store)

	if err := l.Mint(ctx, alice, big.NewInt(5)); err != nil {
		t.Fatal(err)
	}
	if err := l.Mint(ctx, bob, big.NewInt(7)); err != nil {
		t.Fatal(err)
	}
	if err := l.Approve(ctx, alice, bob, big.NewInt(1)); err != nil {
		t.Fatal(err)
	}

	// balances survive a new ledger on the same store
	l = newLedger(t, store)
	balances, err := l.Balances()
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 2 || balances[alice].Int64() != 5 || balances[bob].Int64() != 7 {
		t.Fatalf("got balances %v", balances)
	}
}
