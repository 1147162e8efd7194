// Package api serves the public HTTP interface of the swap ledger: the
// configuration and allowance views, the calculator, deposits, and the
// administrative operations authenticated by caller signature.
package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/coreos/go-semver/semver"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/api/auth"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/logging"
	m "github.com/redesblock/tierswap/core/metrics"
	"github.com/redesblock/tierswap/core/storage"
	"github.com/redesblock/tierswap/core/swap"
	"github.com/redesblock/tierswap/core/tier"
	"github.com/redesblock/tierswap/core/tracing"
	"github.com/redesblock/tierswap/core/util/rate/limit"
)

// Version is the semantic version of the API.
const Version = "1.0.0"

// APIVersionHeader optionally names the API version a client was written
// against. Requests for another major version are rejected.
const APIVersionHeader = "Tierswap-Api-Version"

var errIncompatibleVersion = errors.New("incompatible api version")

// Service is the API service interface.
type Service interface {
	http.Handler
	m.Collector
}

// Ledger is the swap ledger the API serves.
type Ledger interface {
	DepositWithSignature(ctx context.Context, req swap.DepositRequest) (*swap.Receipt, error)
	Calculate(remaining accounting.Limits, amount *big.Int) (tier.Result, error)
	Config() swap.Config
	Allowance(account common.Address) (allowance.Allowance, error)
	Allowances() ([]allowance.Allowance, error)
	Balance(ctx context.Context) (*big.Int, error)
	Deposits() ([]swap.Receipt, error)
	SetTierRatio(caller common.Address, i int, ratio uint64) error
	EnableTier(caller common.Address, i int) error
	DisableTier(caller common.Address, i int) error
	SetMinPerTx(caller common.Address, v *big.Int) error
	SetMaxPerTx(caller common.Address, v *big.Int) error
	UpdateAllowance(caller, account common.Address, limits accounting.Limits) error
	Claim(ctx context.Context, caller, destination common.Address, amount *big.Int) (*big.Int, error)
}

type server struct {
	Ledger             Ledger
	Authenticator      auth.Authenticator
	CORSAllowedOrigins []string
	Logger             logging.Logger
	Tracer             *tracing.Tracer
	DepositLimiter     *limit.Limiter
	http.Handler
	metrics metrics
}

type Options struct {
	Ledger             Ledger
	Authenticator      auth.Authenticator
	CORSAllowedOrigins []string
	Logger             logging.Logger
	Tracer             *tracing.Tracer

	// DepositLimiter bounds deposits per receiver. Nil disables the limit.
	DepositLimiter *limit.Limiter
}

// New will create a and initialize a new API service.
func New(o Options) Service {
	s := &server{
		Ledger:             o.Ledger,
		Authenticator:      o.Authenticator,
		CORSAllowedOrigins: o.CORSAllowedOrigins,
		Logger:             o.Logger,
		Tracer:             o.Tracer,
		DepositLimiter:     o.DepositLimiter,
		metrics:            newMetrics(),
	}

	s.setupRouting()

	return s
}

// respondError maps ledger errors to response statuses.
func (s *server) respondError(w http.ResponseWriter, operation string, err error) {
	s.Logger.Debugf("%s: %v", operation, err)
	switch {
	case errors.Is(err, accounting.ErrUnauthorized):
		jsonhttp.Forbidden(w, err)
	case errors.Is(err, accounting.ErrLimitViolation),
		errors.Is(err, accounting.ErrInvalidTier),
		errors.Is(err, accounting.ErrInvalidAmount):
		jsonhttp.BadRequest(w, err)
	case errors.Is(err, accounting.ErrInsufficientBalance):
		jsonhttp.PaymentRequired(w, err)
	case errors.Is(err, storage.ErrNotFound):
		jsonhttp.NotFound(w, nil)
	default:
		s.Logger.Errorf("%s failed", operation)
		jsonhttp.InternalServerError(w, operation+" failed")
	}
}

// caller returns the authenticated caller of the request.
func caller(r *http.Request) common.Address {
	c, _ := auth.Caller(r.Context())
	return c
}

func checkVersion(header string) error {
	if header == "" {
		return nil
	}
	v, err := semver.NewVersion(header)
	if err != nil {
		return errIncompatibleVersion
	}
	if v.Major != semver.New(Version).Major {
		return errIncompatibleVersion
	}
	return nil
}

func (s *server) versionCheckHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := checkVersion(r.Header.Get(APIVersionHeader)); err != nil {
			s.Logger.Debugf("version check: %q: %v", r.Header.Get(APIVersionHeader), err)
			jsonhttp.BadRequest(w, errIncompatibleVersion)
			return
		}
		w.Header().Set(APIVersionHeader, Version)
		h.ServeHTTP(w, r)
	})
}
