package debugapi_test

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/debugapi"
	"github.com/redesblock/tierswap/core/logging"
	mockstore "github.com/redesblock/tierswap/core/statestore/mock"
	"github.com/redesblock/tierswap/core/token/local"
	"resenje.org/web"
)

var ledgerAddress = common.HexToAddress("0x00000000000000000000000000000000000000bb")

type testServerOptions struct {
	DevMode            bool
	CORSAllowedOrigins []string
}

type testServer struct {
	Client  *http.Client
	Token   *local.Ledger
	Service debugapi.Service
}

func newTestServer(t *testing.T, o testServerOptions) *testServer {
	logger := logging.New(ioutil.Discard, 0)
	statestore := mockstore.NewStateStore()
	token := local.New(statestore, logger)

	s := debugapi.New(debugapi.Options{
		LedgerAddress:      ledgerAddress,
		Token:              token,
		Logger:             logger,
		CORSAllowedOrigins: o.CORSAllowedOrigins,
		DevMode:            o.DevMode,
	})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	client := &http.Client{
		Transport: web.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			u, err := url.Parse(ts.URL + r.URL.String())
			if err != nil {
				return nil, err
			}
			r.URL = u
			return ts.Client().Transport.RoundTrip(r)
		}),
	}
	return &testServer{
		Client:  client,
		Token:   token,
		Service: s,
	}
}
