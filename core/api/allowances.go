package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/jsonhttp"
)

var errInvalidAccount = errors.New("invalid account address")

type allowanceResponse struct {
	Account common.Address    `json:"account"`
	Limits  accounting.Limits `json:"limits"`
	Saved   bool              `json:"saved"`
}

type allowancesResponse struct {
	Allowances []allowanceResponse `json:"allowances"`
}

type allowanceUpdateRequest struct {
	Limits accounting.Limits `json:"limits"`
}

func newAllowanceResponse(a allowance.Allowance) allowanceResponse {
	return allowanceResponse{
		Account: a.Account,
		Limits:  a.Limits,
		Saved:   a.Saved,
	}
}

func parseAccount(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errInvalidAccount
	}
	return common.HexToAddress(s), nil
}

func (s *server) allowanceHandler(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(mux.Vars(r)["account"])
	if err != nil {
		s.Logger.Debugf("allowance: parse account %q: %v", mux.Vars(r)["account"], err)
		jsonhttp.BadRequest(w, errInvalidAccount)
		return
	}

	a, err := s.Ledger.Allowance(account)
	if err != nil {
		s.respondError(w, "allowance", err)
		return
	}
	jsonhttp.OK(w, newAllowanceResponse(a))
}

func (s *server) allowancesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.Ledger.Allowances()
	if err != nil {
		s.respondError(w, "allowances", err)
		return
	}
	resp := allowancesResponse{Allowances: make([]allowanceResponse, 0, len(list))}
	for _, a := range list {
		resp.Allowances = append(resp.Allowances, newAllowanceResponse(a))
	}
	jsonhttp.OK(w, resp)
}

func (s *server) allowanceUpdateHandler(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(mux.Vars(r)["account"])
	if err != nil {
		s.Logger.Debugf("allowance update: parse account %q: %v", mux.Vars(r)["account"], err)
		jsonhttp.BadRequest(w, errInvalidAccount)
		return
	}

	var req allowanceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			jsonhttp.BadRequest(w, "missing request body")
			return
		}
		s.Logger.Debugf("allowance update: decode: %v", err)
		jsonhttp.BadRequest(w, "invalid request body")
		return
	}

	if err := s.Ledger.UpdateAllowance(caller(r), account, req.Limits); err != nil {
		s.respondError(w, "allowance update", err)
		return
	}
	a, err := s.Ledger.Allowance(account)
	if err != nil {
		s.respondError(w, "allowance update", err)
		return
	}
	jsonhttp.OK(w, newAllowanceResponse(a))
}
