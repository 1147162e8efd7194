// Package test holds the conformance suite every keystore.Service
// implementation runs in its tests.
package test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/redesblock/tierswap/core/crypto"
	"github.com/redesblock/tierswap/core/keystore"
)

// Service is a utility testing function that can be used to test
// implementations of the keystore.Service interface.
func Service(t *testing.T, s keystore.Service) {
	t.Helper()

	exists, err := s.Exists("validator")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("should not exist")
	}

	// create a new validator key
	k1, created, err := s.Key("validator", "pass123456")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("key is not created")
	}

	exists, err = s.Exists("validator")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("should exist")
	}

	// get the existing validator key
	k2, created, err := s.Key("validator", "pass123456")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("key is created, but should not be")
	}
	if !bytes.Equal(crypto.EncodeSecp256k1PrivateKey(k1), crypto.EncodeSecp256k1PrivateKey(k2)) {
		t.Fatal("two keys are not equal")
	}

	// invalid password
	_, _, err = s.Key("validator", "invalid password")
	if !errors.Is(err, keystore.ErrInvalidPassword) {
		t.Fatal(err)
	}

	// create a new owner key
	k3, created, err := s.Key("owner", "owner pass")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("key is not created")
	}
	if bytes.Equal(crypto.EncodeSecp256k1PrivateKey(k1), crypto.EncodeSecp256k1PrivateKey(k3)) {
		t.Fatal("two keys are equal, but should not be")
	}

	// get the existing owner key
	k4, created, err := s.Key("owner", "owner pass")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("key is created, but should not be")
	}
	if !bytes.Equal(crypto.EncodeSecp256k1PrivateKey(k3), crypto.EncodeSecp256k1PrivateKey(k4)) {
		t.Fatal("two keys are not equal")
	}
}
