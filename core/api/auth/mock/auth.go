package mock

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// Auth is an Authenticator returning a fixed caller unless AuthenticateFunc
// is set.
type Auth struct {
	Caller           common.Address
	AuthenticateFunc func(*http.Request, []byte) (common.Address, error)
}

func (ma *Auth) Authenticate(r *http.Request, body []byte) (common.Address, error) {
	if ma.AuthenticateFunc == nil {
		return ma.Caller, nil
	}
	return ma.AuthenticateFunc(r, body)
}
