package mem

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/redesblock/tierswap/core/crypto"
	"github.com/redesblock/tierswap/core/keystore"
)

var _ keystore.Service = (*Service)(nil)

// Service is the memory-based keystore.
type Service struct {
	m  map[string]key
	mu sync.Mutex
}

// New creates new memory-based keystore.
func New() *Service {
	return &Service{
		m: make(map[string]key),
	}
}

func (s *Service) Exists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.m[name]
	return ok, nil
}

func (s *Service) Key(name, password string) (pk *ecdsa.PrivateKey, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.m[name]
	if !ok {
		pk, err := crypto.GenerateSecp256k1Key()
		if err != nil {
			return nil, false, fmt.Errorf("generate secp256k1 key: %w", err)
		}
		s.m[name] = key{
			pk:       pk,
			password: password,
		}
		return pk, true, nil
	}

	if k.password != password {
		return nil, false, keystore.ErrInvalidPassword
	}

	return k.pk, created, nil
}

type key struct {
	pk       *ecdsa.PrivateKey
	password string
}
