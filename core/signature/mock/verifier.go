package mock

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/signature"
)

type verifierMock struct {
	verify func(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error)
}

// Option configures the mock verifier.
type Option interface {
	apply(*verifierMock)
}

type optionFunc func(*verifierMock)

func (f optionFunc) apply(r *verifierMock) { f(r) }

// WithVerifyFunc sets the mock Verify function.
func WithVerifyFunc(f func(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error)) Option {
	return optionFunc(func(s *verifierMock) {
		s.verify = f
	})
}

// WithResult makes every verification return ok and err.
func WithResult(ok bool, err error) Option {
	return WithVerifyFunc(func(common.Address, accounting.Limits, []byte, common.Address) (bool, error) {
		return ok, err
	})
}

// New creates a mock verifier. Without options every signature verifies.
func New(opts ...Option) signature.Verifier {
	m := &verifierMock{}
	for _, o := range opts {
		o.apply(m)
	}
	return m
}

func (m *verifierMock) Verify(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error) {
	if m.verify != nil {
		return m.verify(account, amounts, sig, validator)
	}
	return true, nil
}
