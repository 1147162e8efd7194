// Package crypto provides the secp256k1 and Keccak-256 primitives used to
// sign and verify validator allowances and administrative requests.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidPublicKey is returned for a public key without curve coordinates.
var ErrInvalidPublicKey = errors.New("invalid public key")

// NewEthereumAddress returns the Ethereum address derived from the public key.
func NewEthereumAddress(p ecdsa.PublicKey) (common.Address, error) {
	if p.X == nil || p.Y == nil {
		return common.Address{}, ErrInvalidPublicKey
	}
	pubBytes := elliptic.Marshal(btcec.S256(), p.X, p.Y)
	pubHash, err := LegacyKeccak256(pubBytes[1:])
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(pubHash[12:]), nil
}

// GenerateSecp256k1Key generates an ECDSA private key using
// secp256k1 elliptic curve.
func GenerateSecp256k1Key() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(btcec.S256(), rand.Reader)
}

// EncodeSecp256k1PrivateKey encodes raw ECDSA private key.
func EncodeSecp256k1PrivateKey(k *ecdsa.PrivateKey) []byte {
	return (*btcec.PrivateKey)(k).Serialize()
}

// DecodeSecp256k1PrivateKey decodes raw ECDSA private key.
func DecodeSecp256k1PrivateKey(data []byte) (*ecdsa.PrivateKey, error) {
	if l := len(data); l != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("secp256k1 data size %d expected %d", l, btcec.PrivKeyBytesLen)
	}
	privk, _ := btcec.PrivKeyFromBytes(btcec.S256(), data)
	return (*ecdsa.PrivateKey)(privk), nil
}

// DecodeHexPrivateKey decodes a hex encoded secp256k1 private key with an
// optional 0x prefix.
func DecodeHexPrivateKey(s string) (*ecdsa.PrivateKey, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return DecodeSecp256k1PrivateKey(data)
}

// LegacyKeccak256 returns the Keccak-256 hash of data, as used by Ethereum.
func LegacyKeccak256(data ...[]byte) ([]byte, error) {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		if _, err := hasher.Write(d); err != nil {
			return nil, err
		}
	}
	return hasher.Sum(nil), nil
}
