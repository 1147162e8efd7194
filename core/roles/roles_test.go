package roles_test

import (
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/statestore/mock"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/tier"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	validator = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger  = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func deployment(t *testing.T) roles.Deployment {
	t.Helper()
	tiers, err := tier.NewConfig([]uint64{1, 3, 5}, []bool{true, true, true})
	if err != nil {
		t.Fatal(err)
	}
	return roles.Deployment{
		Owner:     owner,
		Validator: validator,
		Tiers:     tiers,
		MinPerTx:  big.NewInt(1),
		MaxPerTx:  big.NewInt(1000),
	}
}

func newRegistry(t *testing.T, store storage.StateStorer) *roles.Registry {
	t.Helper()
	r, err := roles.Init(store, logging.New(io.Discard, 0), deployment(t))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestInit(t *testing.T) {
	logger := logging.New(io.Discard, 0)

	t.Run("persists changes across restarts", func(t *testing.T) {
		store := mock.NewStateStore()
		r := newRegistry(t, store)
		if err := r.SetTierRatio(owner, 1, 7); err != nil {
			t.Fatal(err)
		}
		if err := r.SetMaxPerTx(owner, big.NewInt(99)); err != nil {
			t.Fatal(err)
		}

		r, err := roles.Init(store, logger, deployment(t))
		if err != nil {
			t.Fatal(err)
		}
		if got := r.Tiers()[1].Ratio; got != 7 {
			t.Fatalf("got ratio %d, want 7", got)
		}
		if _, max := r.Limits(); max.Int64() != 99 {
			t.Fatalf("got max %s, want 99", max)
		}
	})

	t.Run("owner change", func(t *testing.T) {
		store := mock.NewStateStore()
		newRegistry(t, store)

		d := deployment(t)
		d.Owner = stranger
		if _, err := roles.Init(store, logger, d); !errors.Is(err, roles.ErrDeploymentMismatch) {
			t.Fatalf("got error %v, want %v", err, roles.ErrDeploymentMismatch)
		}
	})

	t.Run("validator change", func(t *testing.T) {
		store := mock.NewStateStore()
		newRegistry(t, store)

		d := deployment(t)
		d.Validator = stranger
		if _, err := roles.Init(store, logger, d); !errors.Is(err, roles.ErrDeploymentMismatch) {
			t.Fatalf("got error %v, want %v", err, roles.ErrDeploymentMismatch)
		}
	})

	t.Run("invalid deployment", func(t *testing.T) {
		for name, f := range map[string]func(*roles.Deployment){
			"zero owner":     func(d *roles.Deployment) { d.Owner = common.Address{} },
			"zero validator": func(d *roles.Deployment) { d.Validator = common.Address{} },
			"zero ratio":     func(d *roles.Deployment) { d.Tiers[2].Ratio = 0 },
			"missing min":    func(d *roles.Deployment) { d.MinPerTx = nil },
			"negative max":   func(d *roles.Deployment) { d.MaxPerTx = big.NewInt(-1) },
		} {
			d := deployment(t)
			f(&d)
			if _, err := roles.Init(mock.NewStateStore(), logger, d); err == nil {
				t.Errorf("%s: expected error", name)
			}
		}
	})
}

func TestSetters(t *testing.T) {
	r := newRegistry(t, mock.NewStateStore())

	if err := r.SetTierRatio(owner, 0, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.DisableTier(owner, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.SetMinPerTx(owner, big.NewInt(5)); err != nil {
		t.Fatal(err)
	}
	if err := r.SetMaxPerTx(owner, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}

	tiers := r.Tiers()
	if tiers[0].Ratio != 2 || tiers[2].Enabled {
		t.Fatalf("got tiers %v", tiers)
	}
	min, max := r.Limits()
	if min.Int64() != 5 || max.Int64() != 50 {
		t.Fatalf("got limits [%s, %s]", min, max)
	}

	if err := r.EnableTier(owner, 2); err != nil {
		t.Fatal(err)
	}
	if !r.Tiers()[2].Enabled {
		t.Fatal("tier not enabled")
	}

	// bounds are not checked against each other
	if err := r.SetMinPerTx(owner, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// returned limits are copies
	min, _ = r.Limits()
	min.SetInt64(0)
	if min, _ := r.Limits(); min.Int64() != 100 {
		t.Fatalf("got min %s, want 100", min)
	}
}

func TestSettersRejectNonOwner(t *testing.T) {
	r := newRegistry(t, mock.NewStateStore())
	before := r.Tiers()

	for name, f := range map[string]func(common.Address) error{
		"ratio":   func(c common.Address) error { return r.SetTierRatio(c, 0, 9) },
		"enable":  func(c common.Address) error { return r.EnableTier(c, 0) },
		"disable": func(c common.Address) error { return r.DisableTier(c, 0) },
		"min":     func(c common.Address) error { return r.SetMinPerTx(c, big.NewInt(9)) },
		"max":     func(c common.Address) error { return r.SetMaxPerTx(c, big.NewInt(9)) },
	} {
		for _, caller := range []common.Address{validator, stranger} {
			if err := f(caller); !errors.Is(err, accounting.ErrUnauthorized) {
				t.Errorf("%s by %s: got error %v, want %v", name, caller, err, accounting.ErrUnauthorized)
			}
		}
	}

	if r.Tiers() != before {
		t.Fatalf("tiers changed to %v", r.Tiers())
	}
	if min, max := r.Limits(); min.Int64() != 1 || max.Int64() != 1000 {
		t.Fatalf("limits changed to [%s, %s]", min, max)
	}
}

func TestSettersValidateArguments(t *testing.T) {
	r := newRegistry(t, mock.NewStateStore())

	for _, i := range []int{-1, 3} {
		if err := r.SetTierRatio(owner, i, 2); !errors.Is(err, accounting.ErrInvalidTier) {
			t.Errorf("ratio index %d: got error %v", i, err)
		}
		if err := r.EnableTier(owner, i); !errors.Is(err, accounting.ErrInvalidTier) {
			t.Errorf("enable index %d: got error %v", i, err)
		}
		if err := r.DisableTier(owner, i); !errors.Is(err, accounting.ErrInvalidTier) {
			t.Errorf("disable index %d: got error %v", i, err)
		}
	}
	if err := r.SetTierRatio(owner, 0, 0); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Errorf("zero ratio: got error %v", err)
	}
	if err := r.SetMinPerTx(owner, big.NewInt(-1)); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Errorf("negative min: got error %v", err)
	}
	if err := r.SetMaxPerTx(owner, new(big.Int).Lsh(big.NewInt(1), 256)); !errors.Is(err, accounting.ErrInvalidAmount) {
		t.Errorf("oversized max: got error %v", err)
	}
}

type failingStore struct {
	storage.StateStorer
	err error
}

func (s *failingStore) Put(key string, i interface{}) error {
	if s.err != nil {
		return s.err
	}
	return s.StateStorer.Put(key, i)
}

func TestSetterStoreFailureKeepsState(t *testing.T) {
	store := &failingStore{StateStorer: mock.NewStateStore()}
	r := newRegistry(t, store)

	putErr := errors.New("write failed")
	store.err = putErr

	if err := r.SetTierRatio(owner, 0, 4); !errors.Is(err, putErr) {
		t.Fatalf("got error %v, want %v", err, putErr)
	}
	if err := r.SetMinPerTx(owner, big.NewInt(7)); !errors.Is(err, putErr) {
		t.Fatalf("got error %v, want %v", err, putErr)
	}
	if got := r.Tiers()[0].Ratio; got != 1 {
		t.Fatalf("got ratio %d, want 1", got)
	}
	if min, _ := r.Limits(); min.Int64() != 1 {
		t.Fatalf("got min %s, want 1", min)
	}
}

func TestRoleChecks(t *testing.T) {
	r := newRegistry(t, mock.NewStateStore())

	if err := r.CheckOwner(owner); err != nil {
		t.Fatal(err)
	}
	if err := r.CheckOwner(validator); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v", err)
	}
	for _, c := range []common.Address{owner, validator} {
		if err := r.CheckAllowanceAdmin(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.CheckAllowanceAdmin(stranger); !errors.Is(err, accounting.ErrUnauthorized) {
		t.Fatalf("got error %v", err)
	}
}

func TestCheckAmount(t *testing.T) {
	r := newRegistry(t, mock.NewStateStore())

	for _, tc := range []struct {
		amount  *big.Int
		wantErr error
	}{
		{amount: big.NewInt(1)},
		{amount: big.NewInt(1000)},
		{amount: big.NewInt(0), wantErr: accounting.ErrLimitViolation},
		{amount: big.NewInt(1001), wantErr: accounting.ErrLimitViolation},
		{amount: big.NewInt(-5), wantErr: accounting.ErrInvalidAmount},
		{amount: nil, wantErr: accounting.ErrInvalidAmount},
	} {
		err := r.CheckAmount(tc.amount)
		if tc.wantErr == nil && err != nil {
			t.Errorf("amount %v: %v", tc.amount, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("amount %v: got error %v, want %v", tc.amount, err, tc.wantErr)
		}
	}
}
