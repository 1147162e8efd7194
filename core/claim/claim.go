// Package claim lets the owner withdraw the deposits held by the ledger.
package claim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/token"
)

// Service transfers held tokens out of the ledger account.
type Service struct {
	roles   *roles.Registry
	token   token.Service
	address common.Address
	logger  logging.Logger
}

// New creates a claim Service for the tokens held by address.
func New(roles *roles.Registry, token token.Service, address common.Address, logger logging.Logger) *Service {
	return &Service{
		roles:   roles,
		token:   token,
		address: address,
		logger:  logger,
	}
}

// Claim sends amount of the held tokens to destination. A zero amount sends
// the whole balance. Only the owner may claim.
func (s *Service) Claim(ctx context.Context, caller, destination common.Address, amount *big.Int) (*big.Int, error) {
	if err := s.roles.CheckOwner(caller); err != nil {
		return nil, err
	}
	if err := accounting.ValidateAmount(amount); err != nil {
		return nil, err
	}

	balance, err := s.token.BalanceOf(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("ledger balance: %w", err)
	}

	resolved := new(big.Int).Set(amount)
	if resolved.Sign() == 0 {
		resolved.Set(balance)
	} else if resolved.Cmp(balance) > 0 {
		return nil, fmt.Errorf("%w: claim %s exceeds held %s", accounting.ErrInsufficientBalance, amount, balance)
	}
	if resolved.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing to claim", accounting.ErrLimitViolation)
	}

	if err := s.token.Transfer(ctx, s.address, destination, resolved); err != nil {
		return nil, err
	}
	s.logger.Infof("claim: %s sent to %s", resolved, destination)
	return resolved, nil
}
