package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/redesblock/tierswap/core/api/auth"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/sirupsen/logrus"
	"resenje.org/web"
)

func (s *server) setupRouting() {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(jsonhttp.NotFoundHandler)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "tierswap node")
	})

	router.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "User-agent: *\nDisallow: /")
	})

	router.Handle("/config", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.configHandler),
	})

	router.Handle("/balance", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.balanceHandler),
	})

	router.Handle("/calculate", jsonhttp.MethodHandler{
		"POST": http.HandlerFunc(s.calculateHandler),
	})

	router.Handle("/deposits", jsonhttp.MethodHandler{
		"GET":  http.HandlerFunc(s.depositsHandler),
		"POST": http.HandlerFunc(s.depositHandler),
	})

	router.Handle("/allowances", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.allowancesHandler),
	})

	authenticated := auth.CallerSignatureHandler(s.Authenticator, s.Logger)

	router.Handle("/allowances/{account}", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.allowanceHandler),
		"PUT": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.allowanceUpdateHandler),
		),
	})

	router.Handle("/tiers/{index}/ratio", jsonhttp.MethodHandler{
		"PUT": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.tierRatioHandler),
		),
	})

	router.Handle("/tiers/{index}/enable", jsonhttp.MethodHandler{
		"POST": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.tierEnableHandler),
		),
	})

	router.Handle("/tiers/{index}/disable", jsonhttp.MethodHandler{
		"POST": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.tierDisableHandler),
		),
	})

	router.Handle("/limits/min", jsonhttp.MethodHandler{
		"PUT": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.minPerTxHandler),
		),
	})

	router.Handle("/limits/max", jsonhttp.MethodHandler{
		"PUT": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.maxPerTxHandler),
		),
	})

	router.Handle("/claims", jsonhttp.MethodHandler{
		"POST": web.ChainHandlers(
			authenticated,
			web.FinalHandlerFunc(s.claimHandler),
		),
	})

	s.Handler = web.ChainHandlers(
		logging.NewHTTPAccessLogHandler(s.Logger, logrus.InfoLevel, "api access"),
		handlers.CompressHandler,
		s.corsHandler,
		s.pageviewMetricsHandler,
		s.versionCheckHandler,
		web.FinalHandler(router),
	)
}

func (s *server) corsHandler(h http.Handler) http.Handler {
	if len(s.CORSAllowedOrigins) == 0 {
		return h
	}
	allowedHeaders := []string{
		"User-Agent", "Accept", "X-Requested-With", "Access-Control-Request-Headers", "Access-Control-Request-Method", "Accept-Ranges", "Content-Encoding",
		"Content-Type", APIVersionHeader, auth.CallerSignatureHeader, auth.CallerTimestampHeader,
	}
	return handlers.CORS(
		handlers.AllowedOrigins(s.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		handlers.AllowedHeaders(allowedHeaders),
		handlers.ExposedHeaders([]string{APIVersionHeader}),
	)(h)
}
