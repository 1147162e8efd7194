package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/swap"
	"github.com/redesblock/tierswap/core/tracing"
	"github.com/redesblock/tierswap/core/util/bigint"
)

// maxRequestBodySize limits the bodies of public requests.
const maxRequestBodySize = 1 << 16

var errDepositRateExceeded = errors.New("deposit rate exceeded")

type depositRequest struct {
	Amount    *bigint.BigInt    `json:"amount"`
	Receiver  common.Address    `json:"receiver"`
	Signer    common.Address    `json:"signer"`
	Amounts   accounting.Limits `json:"amounts"`
	Signature hexutil.Bytes     `json:"signature"`
}

type depositsResponse struct {
	Deposits []swap.Receipt `json:"deposits"`
}

type calculateRequest struct {
	Remaining accounting.Limits `json:"remaining"`
	Amount    *bigint.BigInt    `json:"amount"`
}

type calculateResponse struct {
	Remaining accounting.Limits `json:"remaining"`
	Consumed  *bigint.BigInt    `json:"consumed"`
	Credited  *bigint.BigInt    `json:"credited"`
}

// decodeJSON decodes the request body into v and responds on failure.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, operation string, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(v); err != nil {
		if jsonhttp.HandleBodyReadError(err, w) {
			return false
		}
		if errors.Is(err, io.EOF) {
			jsonhttp.BadRequest(w, "missing request body")
			return false
		}
		s.Logger.Debugf("%s: decode request: %v", operation, err)
		jsonhttp.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func unwrap(b *bigint.BigInt) *big.Int {
	if b == nil {
		return nil
	}
	return b.Int
}

func (s *server) depositHandler(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decodeJSON(w, r, "deposit", &req) {
		return
	}

	if s.DepositLimiter != nil && !s.DepositLimiter.Allow(req.Receiver.Hex(), 1) {
		s.Logger.Debugf("deposit: receiver %s: %v", req.Receiver, errDepositRateExceeded)
		jsonhttp.TooManyRequests(w, errDepositRateExceeded)
		return
	}

	ctx, err := s.Tracer.WithContextFromHTTPHeaders(r.Context(), r.Header)
	if err != nil && !errors.Is(err, tracing.ErrContextNotFound) {
		s.Logger.Debugf("deposit: trace context: %v", err)
	}

	receipt, err := s.Ledger.DepositWithSignature(ctx, swap.DepositRequest{
		Amount:    unwrap(req.Amount),
		Receiver:  req.Receiver,
		Signer:    req.Signer,
		Amounts:   req.Amounts,
		Signature: req.Signature,
	})
	if err != nil {
		s.respondError(w, "deposit", err)
		return
	}
	jsonhttp.Created(w, receipt)
}

func (s *server) depositsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.Ledger.Deposits()
	if err != nil {
		s.respondError(w, "deposits", err)
		return
	}
	jsonhttp.OK(w, depositsResponse{Deposits: receipts})
}

func (s *server) calculateHandler(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !s.decodeJSON(w, r, "calculate", &req) {
		return
	}

	result, err := s.Ledger.Calculate(req.Remaining, unwrap(req.Amount))
	if err != nil {
		s.respondError(w, "calculate", err)
		return
	}
	jsonhttp.OK(w, calculateResponse{
		Remaining: result.Remaining,
		Consumed:  bigint.Wrap(result.Consumed),
		Credited:  bigint.Wrap(result.Credited),
	})
}
