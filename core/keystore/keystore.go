// Package keystore stores secp256k1 keys under names, protected by a
// password.
package keystore

import (
	"crypto/ecdsa"
	"errors"
)

// ErrInvalidPassword is returned when the password does not decrypt the
// stored key.
var ErrInvalidPassword = errors.New("invalid password")

// Service for managing keystore private keys.
type Service interface {
	// Key returns the private key for a specified name that was encrypted
	// with the provided password. If the private key does not exist it creates
	// a new one with a name and the password, and returns with created set
	// to true.
	Key(name, password string) (k *ecdsa.PrivateKey, created bool, err error)
	// Exists returns true if the key with specified name exists.
	Exists(name string) (bool, error)
}
