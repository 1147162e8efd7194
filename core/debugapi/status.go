package debugapi

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	tierswap "github.com/redesblock/tierswap"
	"github.com/redesblock/tierswap/core/api"
	"github.com/redesblock/tierswap/core/jsonhttp"
)

type statusResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	APIVersion      string `json:"apiVersion"`
	DebugAPIVersion string `json:"debugApiVersion"`
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	jsonhttp.OK(w, statusResponse{
		Status:          "ok",
		Version:         tierswap.Version,
		APIVersion:      api.Version,
		DebugAPIVersion: Version,
	})
}

type addressesResponse struct {
	Ledger common.Address `json:"ledger"`
}

func (s *server) addressesHandler(w http.ResponseWriter, r *http.Request) {
	jsonhttp.OK(w, addressesResponse{
		Ledger: s.LedgerAddress,
	})
}
