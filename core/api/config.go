package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/util/bigint"
)

type configResponse struct {
	Address   common.Address `json:"address"`
	Owner     common.Address `json:"owner"`
	Validator common.Address `json:"validator"`
	Ratios    []uint64       `json:"ratios"`
	Enabled   []bool         `json:"enabled"`
	MinPerTx  *bigint.BigInt `json:"minPerTx"`
	MaxPerTx  *bigint.BigInt `json:"maxPerTx"`
}

func (s *server) configHandler(w http.ResponseWriter, r *http.Request) {
	c := s.Ledger.Config()
	jsonhttp.OK(w, configResponse{
		Address:   c.Address,
		Owner:     c.Owner,
		Validator: c.Validator,
		Ratios:    c.Tiers.Ratios(),
		Enabled:   c.Tiers.Enabled(),
		MinPerTx:  bigint.Wrap(c.MinPerTx),
		MaxPerTx:  bigint.Wrap(c.MaxPerTx),
	})
}

type balanceResponse struct {
	Balance *bigint.BigInt `json:"balance"`
}

func (s *server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	balance, err := s.Ledger.Balance(r.Context())
	if err != nil {
		s.respondError(w, "ledger balance", err)
		return
	}
	jsonhttp.OK(w, balanceResponse{Balance: bigint.Wrap(balance)})
}
