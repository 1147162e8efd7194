// Package auth authenticates administrative API requests. A request carries
// the caller signature over its method, path, timestamp and body; the
// recovered signer is the caller the ledger checks roles against.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redesblock/tierswap/core/crypto"
)

const (
	CallerSignatureHeader = "Tierswap-Caller-Signature"
	CallerTimestampHeader = "Tierswap-Caller-Timestamp"

	// DefaultMaxSkew is how far the request timestamp may be from the
	// server clock.
	DefaultMaxSkew = 5 * time.Minute
	// DefaultReplayCacheSize is the number of recently seen signatures kept
	// to reject replays.
	DefaultReplayCacheSize = 10000
)

var (
	ErrMissingSignature = errors.New("missing caller signature")
	ErrInvalidSignature = errors.New("invalid caller signature")
	ErrInvalidTimestamp = errors.New("invalid caller timestamp")
	ErrExpired          = errors.New("caller timestamp out of range")
	ErrReplayed         = errors.New("caller signature already used")
)

// Authenticator resolves the caller of a request with the given body.
type Authenticator interface {
	Authenticate(r *http.Request, body []byte) (common.Address, error)
}

// Service is the Authenticator for signed requests.
type Service struct {
	maxSkew time.Duration
	replays *lru.Cache
	nowFn   func() time.Time
}

// New creates a Service. Non positive arguments use the defaults.
func New(maxSkew time.Duration, replayCacheSize int) (*Service, error) {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	if replayCacheSize <= 0 {
		replayCacheSize = DefaultReplayCacheSize
	}
	replays, err := lru.New(replayCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		maxSkew: maxSkew,
		replays: replays,
		nowFn:   time.Now,
	}, nil
}

// RequestDigest is the data a caller signs for a request.
func RequestDigest(method, path, timestamp string, body []byte) ([]byte, error) {
	return crypto.LegacyKeccak256([]byte(method+"\n"+path+"\n"+timestamp+"\n"), body)
}

// Authenticate verifies the caller headers of r and returns the signer.
func (s *Service) Authenticate(r *http.Request, body []byte) (common.Address, error) {
	sigHex := r.Header.Get(CallerSignatureHeader)
	if sigHex == "" {
		return common.Address{}, ErrMissingSignature
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	ts := r.Header.Get(CallerTimestampHeader)
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return common.Address{}, ErrInvalidTimestamp
	}
	if d := s.nowFn().Sub(time.Unix(unix, 0)); d > s.maxSkew || d < -s.maxSkew {
		return common.Address{}, ErrExpired
	}

	digest, err := RequestDigest(r.Method, r.URL.Path, ts, body)
	if err != nil {
		return common.Address{}, err
	}
	caller, err := crypto.RecoverEthereumAddress(sig, digest)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	// keyed by what was signed; other encodings of one signature recover the same caller
	if ok, _ := s.replays.ContainsOrAdd(caller.Hex()+hex.EncodeToString(digest), struct{}{}); ok {
		return common.Address{}, ErrReplayed
	}
	return caller, nil
}

// SignRequest sets the caller headers of r for body signed by signer at now.
func SignRequest(signer crypto.Signer, r *http.Request, body []byte, now time.Time) error {
	ts := strconv.FormatInt(now.Unix(), 10)
	digest, err := RequestDigest(r.Method, r.URL.Path, ts, body)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return err
	}
	r.Header.Set(CallerTimestampHeader, ts)
	r.Header.Set(CallerSignatureHeader, "0x"+hex.EncodeToString(sig))
	return nil
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated caller of the request context.
func Caller(ctx context.Context) (common.Address, bool) {
	c, ok := ctx.Value(callerKey{}).(common.Address)
	return c, ok
}
