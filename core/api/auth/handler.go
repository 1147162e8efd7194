package auth

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/logging"
)

// MaxBodySize limits the bodies of authenticated requests.
const MaxBodySize = 1 << 20

// CallerSignatureHandler admits requests whose caller signature verifies and
// stores the caller in the request context.
func CallerSignatureHandler(a Authenticator, logger logging.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
			if jsonhttp.HandleBodyReadError(err, w) {
				logger.Debugf("caller auth: read body: %v", err)
				return
			}
			r.Body = ioutil.NopCloser(bytes.NewReader(body))

			caller, err := a.Authenticate(r, body)
			if err != nil {
				logger.Debugf("caller auth: %v", err)
				switch {
				case errors.Is(err, ErrMissingSignature):
					jsonhttp.Unauthorized(w, "missing caller signature")
				case errors.Is(err, ErrInvalidSignature),
					errors.Is(err, ErrInvalidTimestamp),
					errors.Is(err, ErrExpired),
					errors.Is(err, ErrReplayed):
					jsonhttp.Unauthorized(w, err)
				default:
					logger.Error("caller auth: authenticate")
					jsonhttp.InternalServerError(w, "cannot authenticate caller")
				}
				return
			}

			h.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
