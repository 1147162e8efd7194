// Package token defines the fungible token ledger the swap ledger moves
// deposits through.
package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Service is the part of an ERC20 style token the ledger relies on.
type Service interface {
	// BalanceOf returns the balance of account.
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	// Allowance returns the amount spender may move out of holder.
	Allowance(ctx context.Context, holder, spender common.Address) (*big.Int, error)
	// TransferFrom moves amount from holder to recipient using the
	// allowance holder granted to spender.
	TransferFrom(ctx context.Context, spender, holder, recipient common.Address, amount *big.Int) error
	// Transfer moves amount from the balance of from to to.
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Administrator is a Service that also allows setting up balances and
// allowances directly. It is only exposed in development mode.
type Administrator interface {
	Service
	Mint(ctx context.Context, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, holder, spender common.Address, amount *big.Int) error
}
