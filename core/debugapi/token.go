package debugapi

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/util/bigint"
)

var (
	errCantMint      = "Cannot mint tokens"
	errCantApprove   = "Cannot approve spender"
	errCantBalances  = "Cannot get balances"
	errCantBalance   = "Cannot get balance"
	errInvalidAmount = "Invalid amount"
	errInvalidBody   = "Invalid request body"
	errInvaliAccount = "Invalid account"
)

type tokenMintRequest struct {
	Account common.Address `json:"account"`
	Amount  *bigint.BigInt `json:"amount"`
}

type tokenApproveRequest struct {
	Holder  common.Address `json:"holder"`
	Spender common.Address `json:"spender"`
	Amount  *bigint.BigInt `json:"amount"`
}

type tokenBalanceResponse struct {
	Account common.Address `json:"account"`
	Balance *bigint.BigInt `json:"balance"`
}

type tokenBalancesResponse struct {
	Balances []tokenBalanceResponse `json:"balances"`
}

func amountOf(b *bigint.BigInt) *big.Int {
	if b == nil {
		return nil
	}
	return b.Int
}

func (s *server) tokenMintHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Logger.Debugf("debug api: token mint: decode: %v", err)
		jsonhttp.BadRequest(w, errInvalidBody)
		return
	}
	if err := s.Token.Mint(r.Context(), req.Account, amountOf(req.Amount)); err != nil {
		if errors.Is(err, accounting.ErrInvalidAmount) {
			jsonhttp.BadRequest(w, errInvalidAmount)
			return
		}
		s.Logger.Debugf("debug api: token mint: %v", err)
		s.Logger.Error("debug api: token mint")
		jsonhttp.InternalServerError(w, errCantMint)
		return
	}
	s.tokenBalance(w, r, req.Account)
}

func (s *server) tokenApproveHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Logger.Debugf("debug api: token approve: decode: %v", err)
		jsonhttp.BadRequest(w, errInvalidBody)
		return
	}
	if err := s.Token.Approve(r.Context(), req.Holder, req.Spender, amountOf(req.Amount)); err != nil {
		if errors.Is(err, accounting.ErrInvalidAmount) {
			jsonhttp.BadRequest(w, errInvalidAmount)
			return
		}
		s.Logger.Debugf("debug api: token approve: %v", err)
		s.Logger.Error("debug api: token approve")
		jsonhttp.InternalServerError(w, errCantApprove)
		return
	}
	jsonhttp.OK(w, nil)
}

func (s *server) tokenBalancesHandler(w http.ResponseWriter, r *http.Request) {
	balances, err := s.Token.Balances()
	if err != nil {
		s.Logger.Debugf("debug api: token balances: %v", err)
		s.Logger.Error("debug api: can not get token balances")
		jsonhttp.InternalServerError(w, errCantBalances)
		return
	}

	resp := tokenBalancesResponse{Balances: make([]tokenBalanceResponse, 0, len(balances))}
	for a, b := range balances {
		resp.Balances = append(resp.Balances, tokenBalanceResponse{
			Account: a,
			Balance: bigint.Wrap(b),
		})
	}
	jsonhttp.OK(w, resp)
}

func (s *server) tokenBalanceHandler(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["account"]
	if !common.IsHexAddress(addr) {
		s.Logger.Debugf("debug api: token balance: invalid account %s", addr)
		jsonhttp.NotFound(w, errInvaliAccount)
		return
	}
	s.tokenBalance(w, r, common.HexToAddress(addr))
}

func (s *server) tokenBalance(w http.ResponseWriter, r *http.Request, account common.Address) {
	balance, err := s.Token.BalanceOf(r.Context(), account)
	if err != nil {
		s.Logger.Debugf("debug api: token balance %s: %v", account, err)
		s.Logger.Errorf("debug api: can not get token balance of %s", account)
		jsonhttp.InternalServerError(w, errCantBalance)
		return
	}
	jsonhttp.OK(w, tokenBalanceResponse{
		Account: account,
		Balance: bigint.Wrap(balance),
	})
}
