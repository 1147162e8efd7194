// Package debugapi exposes the debug API used to
// inspect the runtime of a tierswap node and, in
// development mode, to seed the local token ledger.
package debugapi

import (
	"math/big"
	"net/http"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/token"
	"github.com/redesblock/tierswap/core/tracing"
)

// Version is the semantic version of the debug API.
const Version = "1.0.0"

type Service interface {
	http.Handler
	MustRegisterMetrics(cs ...prometheus.Collector)
}

// Token is the token ledger seeded through the development endpoints.
type Token interface {
	token.Administrator
	Balances() (map[common.Address]*big.Int, error)
}

type server struct {
	LedgerAddress   common.Address
	Token           Token
	Logger          logging.Logger
	Tracer          *tracing.Tracer
	metricsRegistry *prometheus.Registry
	Options
	http.Handler
}

type Options struct {
	LedgerAddress      common.Address
	Token              Token
	Logger             logging.Logger
	Tracer             *tracing.Tracer
	CORSAllowedOrigins []string
	// DevMode enables the token endpoints. Token must be set.
	DevMode bool
}

// checkOrigin returns true if the origin is not set or is equal to the request host.
func (s *server) checkOrigin(r *http.Request) bool {
	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	hosts := append(s.CORSAllowedOrigins, scheme+"://"+r.Host)
	for _, v := range hosts {
		if equalASCIIFold(origin[0], v) || v == "*" {
			return true
		}
	}

	return false
}

// equalASCIIFold returns true if s is equal to t with ASCII case folding as
// defined in RFC 4790.
func equalASCIIFold(s, t string) bool {
	for s != "" && t != "" {
		sr, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		tr, size := utf8.DecodeRuneInString(t)
		t = t[size:]
		if sr == tr {
			continue
		}
		if 'A' <= sr && sr <= 'Z' {
			sr = sr + 'a' - 'A'
		}
		if 'A' <= tr && tr <= 'Z' {
			tr = tr + 'a' - 'A'
		}
		if sr != tr {
			return false
		}
	}
	return s == t
}

func New(o Options) Service {
	s := &server{
		LedgerAddress:   o.LedgerAddress,
		Token:           o.Token,
		Logger:          o.Logger,
		Tracer:          o.Tracer,
		metricsRegistry: newMetricsRegistry(),
		Options:         o,
	}

	s.setupRouting()

	return s
}

// originHandler rejects cross origin requests from origins that are not
// allowed.
func (s *server) originHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.checkOrigin(r) {
			s.Logger.Debugf("debug api: origin %q not allowed", r.Header.Get("Origin"))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}
