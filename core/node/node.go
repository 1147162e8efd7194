// Package node wires the swap ledger, its persistence and the HTTP servers
// into a running tierswap node.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/api"
	"github.com/redesblock/tierswap/core/api/auth"
	"github.com/redesblock/tierswap/core/debugapi"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/metrics"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/signature"
	"github.com/redesblock/tierswap/core/swap"
	"github.com/redesblock/tierswap/core/token/local"
	"github.com/redesblock/tierswap/core/tracing"
	"github.com/redesblock/tierswap/core/util/rate/limit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Tierswap struct {
	ledger             *swap.Ledger
	ledgerAddress      common.Address
	apiServer          *http.Server
	apiAddr            net.Addr
	debugAPIServer     *http.Server
	debugAPIAddr       net.Addr
	errorLogWriter     *io.PipeWriter
	tracerCloser       io.Closer
	stateStoreCloser   io.Closer
	shutdownInProgress bool
	shutdownMutex      sync.Mutex
}

type Options struct {
	DataDir            string
	APIAddr            string
	DebugAPIAddr       string
	DevMode            bool
	CORSAllowedOrigins []string
	Logger             logging.Logger
	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string
	// LedgerAddress holds the deposited tokens. The zero address selects
	// the one derived from the owner.
	LedgerAddress      common.Address
	Deployment         roles.Deployment
	AllowanceCacheSize int
	CallerMaxSkew      time.Duration

	// DepositRateInterval is the interval at which a receiver regains one
	// deposit. Zero disables the limit.
	DepositRateInterval time.Duration
	DepositRateBurst    int
}

var ErrShutdownInProgress = errors.New("shutdown in progress")

func NewTierswap(o Options) (b *Tierswap, err error) {
	logger := o.Logger

	tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
		Enabled:     o.TracingEnabled,
		Endpoint:    o.TracingEndpoint,
		ServiceName: o.TracingServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}

	b = &Tierswap{
		errorLogWriter: logger.WriterLevel(logrus.ErrorLevel),
		tracerCloser:   tracerCloser,
	}
	defer func() {
		if err != nil {
			if err2 := b.Shutdown(context.Background()); err2 != nil {
				logger.Errorf("node shutdown: %v", err2)
			}
		}
	}()

	stateStore, err := InitStateStore(logger, o.DataDir)
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}
	b.stateStoreCloser = stateStore

	ledgerAddress := o.LedgerAddress
	if ledgerAddress == (common.Address{}) {
		ledgerAddress, err = DeriveLedgerAddress(o.Deployment.Owner)
		if err != nil {
			return nil, fmt.Errorf("ledger address: %w", err)
		}
	}
	if err := CheckLedgerAddressWithStore(ledgerAddress, stateStore); err != nil {
		return nil, err
	}
	b.ledgerAddress = ledgerAddress
	logger.Infof("using ledger address %s", ledgerAddress)

	registry, err := roles.Init(stateStore, logger, o.Deployment)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}

	allowances, err := allowance.New(stateStore, signature.NewVerifier(), logger, o.AllowanceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("allowance store: %w", err)
	}

	token := local.New(stateStore, logger)

	ledger, err := swap.New(ledgerAddress, token, allowances, registry, stateStore, logger, tracer)
	if err != nil {
		return nil, fmt.Errorf("swap ledger: %w", err)
	}
	b.ledger = ledger

	authenticator, err := auth.New(o.CallerMaxSkew, 0)
	if err != nil {
		return nil, fmt.Errorf("caller authentication: %w", err)
	}

	var depositLimiter *limit.Limiter
	if o.DepositRateInterval > 0 {
		burst := o.DepositRateBurst
		if burst <= 0 {
			burst = 1
		}
		depositLimiter, err = limit.New(o.DepositRateInterval, burst, 0)
		if err != nil {
			return nil, fmt.Errorf("deposit rate limit: %w", err)
		}
	}

	apiService := api.New(api.Options{
		Ledger:             ledger,
		Authenticator:      authenticator,
		CORSAllowedOrigins: o.CORSAllowedOrigins,
		Logger:             logger,
		Tracer:             tracer,
		DepositLimiter:     depositLimiter,
	})

	if o.DebugAPIAddr != "" {
		debugAPIService := debugapi.New(debugapi.Options{
			LedgerAddress:      ledgerAddress,
			Token:              token,
			Logger:             logger,
			Tracer:             tracer,
			CORSAllowedOrigins: o.CORSAllowedOrigins,
			DevMode:            o.DevMode,
		})

		if l, ok := logger.(metrics.Collector); ok {
			debugAPIService.MustRegisterMetrics(l.Metrics()...)
		}
		debugAPIService.MustRegisterMetrics(apiService.Metrics()...)
		debugAPIService.MustRegisterMetrics(allowances.Metrics()...)
		debugAPIService.MustRegisterMetrics(ledger.Metrics()...)

		debugAPIListener, err := net.Listen("tcp", o.DebugAPIAddr)
		if err != nil {
			return nil, fmt.Errorf("debug api listener: %w", err)
		}

		debugAPIServer := &http.Server{
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           debugAPIService,
			ErrorLog:          stdlog.New(b.errorLogWriter, "", 0),
		}

		go func() {
			logger.Infof("debug api address: %s", debugAPIListener.Addr())

			if err := debugAPIServer.Serve(debugAPIListener); err != nil && err != http.ErrServerClosed {
				logger.Debugf("debug api server: %v", err)
				logger.Error("unable to serve debug api")
			}
		}()

		b.debugAPIServer = debugAPIServer
		b.debugAPIAddr = debugAPIListener.Addr()
	} else if o.DevMode {
		logger.Warning("dev mode token endpoints need the debug api")
	}

	if o.APIAddr != "" {
		apiListener, err := net.Listen("tcp", o.APIAddr)
		if err != nil {
			return nil, fmt.Errorf("api listener: %w", err)
		}

		apiServer := &http.Server{
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           apiService,
			ErrorLog:          stdlog.New(b.errorLogWriter, "", 0),
		}

		go func() {
			logger.Infof("api address: %s", apiListener.Addr())

			if err := apiServer.Serve(apiListener); err != nil && err != http.ErrServerClosed {
				logger.Debugf("api server: %v", err)
				logger.Error("unable to serve api")
			}
		}()

		b.apiServer = apiServer
		b.apiAddr = apiListener.Addr()
	}

	return b, nil
}

// LedgerAddress returns the address holding the deposited tokens.
func (b *Tierswap) LedgerAddress() common.Address {
	return b.ledgerAddress
}

// APIAddr returns the address the API listens on, nil if it is not served.
func (b *Tierswap) APIAddr() net.Addr {
	return b.apiAddr
}

// DebugAPIAddr returns the address the debug API listens on, nil if it is
// not served.
func (b *Tierswap) DebugAPIAddr() net.Addr {
	return b.debugAPIAddr
}

func (b *Tierswap) Shutdown(ctx context.Context) error {
	var mErr error

	// if a shutdown is already in process, return here
	b.shutdownMutex.Lock()
	if b.shutdownInProgress {
		b.shutdownMutex.Unlock()
		return ErrShutdownInProgress
	}
	b.shutdownInProgress = true
	b.shutdownMutex.Unlock()

	// tryClose is a convenient closure which decrease
	// repetitive io.Closer tryClose procedure.
	tryClose := func(c io.Closer, errMsg string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", errMsg, err))
		}
	}

	var eg errgroup.Group
	if b.apiServer != nil {
		eg.Go(func() error {
			if err := b.apiServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
	}
	if b.debugAPIServer != nil {
		eg.Go(func() error {
			if err := b.debugAPIServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("debug api server: %w", err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	tryClose(b.tracerCloser, "tracer")
	tryClose(b.stateStoreCloser, "statestore")
	tryClose(b.errorLogWriter, "error log writer")

	return mErr
}
