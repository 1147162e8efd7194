package debugapi

import (
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redesblock/tierswap/core/jsonhttp"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/sirupsen/logrus"
	"resenje.org/web"
)

func (s *server) setupRouting() {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(jsonhttp.NotFoundHandler)

	router.Handle("/metrics", web.ChainHandlers(
		handlers.CompressHandler,
		web.FinalHandler(promhttp.InstrumentMetricHandler(
			s.metricsRegistry,
			promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{}),
		)),
	))

	router.Handle("/debug/pprof", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := r.URL
		u.Path += "/"
		http.Redirect(w, r, u.String(), http.StatusPermanentRedirect)
	}))
	router.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
	router.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	router.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	router.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	router.PathPrefix("/debug/pprof/").Handler(http.HandlerFunc(pprof.Index))
	router.Handle("/debug/vars", expvar.Handler())

	router.Handle("/health", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(statusHandler),
	})
	router.Handle("/readiness", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(statusHandler),
	})

	router.Handle("/addresses", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.addressesHandler),
	})

	if s.DevMode && s.Token != nil {
		router.Handle("/token/mint", jsonhttp.MethodHandler{
			"POST": http.HandlerFunc(s.tokenMintHandler),
		})
		router.Handle("/token/approve", jsonhttp.MethodHandler{
			"POST": http.HandlerFunc(s.tokenApproveHandler),
		})
		router.Handle("/token/balances", jsonhttp.MethodHandler{
			"GET": http.HandlerFunc(s.tokenBalancesHandler),
		})
		router.Handle("/token/balances/{account}", jsonhttp.MethodHandler{
			"GET": http.HandlerFunc(s.tokenBalanceHandler),
		})
	}

	s.Handler = web.ChainHandlers(
		logging.NewHTTPAccessLogHandler(s.Logger, logrus.InfoLevel, "debug api access"),
		handlers.CompressHandler,
		s.originHandler,
		web.FinalHandler(router),
	)
}
