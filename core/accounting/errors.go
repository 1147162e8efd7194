package accounting

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller lacks the required role or
	// a signature does not verify against the configured validator.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLimitViolation is returned when a requested amount falls outside the
	// per transaction bounds or would be credited with nothing.
	ErrLimitViolation = errors.New("limit violation")
	// ErrInsufficientBalance is returned when a token transfer cannot be
	// satisfied from the holder balance or spender allowance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrCapacityExhausted is the limit violation of an account whose
	// enabled tiers have no remaining capacity.
	ErrCapacityExhausted = fmt.Errorf("%w: swap capacity exhausted", ErrLimitViolation)
	// ErrInvalidTier is returned for a tier index outside [0, TierCount).
	ErrInvalidTier = errors.New("invalid tier index")
	// ErrInvalidAmount is returned for negative values or values that do not
	// fit in 256 bits.
	ErrInvalidAmount = errors.New("invalid amount")
)
