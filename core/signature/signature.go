// Package signature binds an account to its signed tier allowance. The signed
// message is the Keccak-256 hash of the account address followed by the three
// tier amounts as 32 byte big endian words, the same bytes Solidity produces
// for abi.encodePacked(address, uint256[3]). The hash is signed as an
// Ethereum personal message.
package signature

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/crypto"
)

const wordLength = 32

// Verifier checks that a signature over an account allowance was produced by
// the validator.
type Verifier interface {
	Verify(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error)
}

type verifier struct{}

// NewVerifier returns the Verifier recovering secp256k1 signers.
func NewVerifier() Verifier {
	return verifier{}
}

// Digest returns the canonical hash of account and amounts.
func Digest(account common.Address, amounts accounting.Limits) ([]byte, error) {
	if err := amounts.Validate(); err != nil {
		return nil, err
	}

	data := make([]byte, 0, common.AddressLength+accounting.TierCount*wordLength)
	data = append(data, account.Bytes()...)
	for _, a := range amounts {
		data = append(data, math.PaddedBigBytes(a, wordLength)...)
	}
	return crypto.LegacyKeccak256(data)
}

// Verify reports whether sig is the validator signature over the digest of
// account and amounts. A malformed or unrecoverable signature is reported as
// not verified without an error.
func (verifier) Verify(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error) {
	digest, err := Digest(account, amounts)
	if err != nil {
		return false, err
	}

	signer, err := crypto.RecoverEthereumAddress(sig, digest)
	if err != nil {
		return false, nil
	}
	return signer == validator, nil
}

// Verify checks sig with the default Verifier.
func Verify(account common.Address, amounts accounting.Limits, sig []byte, validator common.Address) (bool, error) {
	return verifier{}.Verify(account, amounts, sig, validator)
}

// Sign produces the validator signature binding amounts to account.
func Sign(signer crypto.Signer, account common.Address, amounts accounting.Limits) ([]byte, error) {
	if signer == nil {
		return nil, errors.New("no signer")
	}
	digest, err := Digest(account, amounts)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("sign allowance: %w", err)
	}
	return sig, nil
}
