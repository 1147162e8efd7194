package api

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/util/bigint"
)

var errInvalidTierIndex = errors.New("invalid tier index")

type tierRatioRequest struct {
	Ratio uint64 `json:"ratio"`
}

type limitRequest struct {
	Value *bigint.BigInt `json:"value"`
}

type claimRequest struct {
	Destination common.Address `json:"destination"`
	// Amount zero or absent claims the whole ledger balance.
	Amount *bigint.BigInt `json:"amount"`
}

type claimResponse struct {
	Destination common.Address `json:"destination"`
	Amount      *bigint.BigInt `json:"amount"`
}

func (s *server) tierIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.Logger.Debugf("tier: parse index %q: %v", mux.Vars(r)["index"], err)
		jsonhttp.BadRequest(w, errInvalidTierIndex)
		return 0, false
	}
	return i, true
}

func (s *server) tierRatioHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := s.tierIndex(w, r)
	if !ok {
		return
	}
	var req tierRatioRequest
	if !s.decodeJSON(w, r, "tier ratio", &req) {
		return
	}
	if err := s.Ledger.SetTierRatio(caller(r), i, req.Ratio); err != nil {
		s.respondError(w, "tier ratio", err)
		return
	}
	s.configHandler(w, r)
}

func (s *server) tierEnableHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := s.tierIndex(w, r)
	if !ok {
		return
	}
	if err := s.Ledger.EnableTier(caller(r), i); err != nil {
		s.respondError(w, "tier enable", err)
		return
	}
	s.configHandler(w, r)
}

func (s *server) tierDisableHandler(w http.ResponseWriter, r *http.Request) {
	i, ok := s.tierIndex(w, r)
	if !ok {
		return
	}
	if err := s.Ledger.DisableTier(caller(r), i); err != nil {
		s.respondError(w, "tier disable", err)
		return
	}
	s.configHandler(w, r)
}

func (s *server) minPerTxHandler(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if !s.decodeJSON(w, r, "min per tx", &req) {
		return
	}
	if err := s.Ledger.SetMinPerTx(caller(r), unwrap(req.Value)); err != nil {
		s.respondError(w, "min per tx", err)
		return
	}
	s.configHandler(w, r)
}

func (s *server) maxPerTxHandler(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if !s.decodeJSON(w, r, "max per tx", &req) {
		return
	}
	if err := s.Ledger.SetMaxPerTx(caller(r), unwrap(req.Value)); err != nil {
		s.respondError(w, "max per tx", err)
		return
	}
	s.configHandler(w, r)
}

func (s *server) claimHandler(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !s.decodeJSON(w, r, "claim", &req) {
		return
	}
	amount := unwrap(req.Amount)
	if amount == nil {
		amount = new(big.Int)
	}
	claimed, err := s.Ledger.Claim(r.Context(), caller(r), req.Destination, amount)
	if err != nil {
		s.respondError(w, "claim", err)
		return
	}
	jsonhttp.OK(w, claimResponse{
		Destination: req.Destination,
		Amount:      bigint.Wrap(claimed),
	})
}
