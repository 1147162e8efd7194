package debugapi

import (
	"github.com/prometheus/client_golang/prometheus"
	tierswap "github.com/redesblock/tierswap"
	m "github.com/redesblock/tierswap/core/metrics"
)

func newMetricsRegistry() (r *prometheus.Registry) {
	r = prometheus.NewRegistry()

	// register standard metrics
	r.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{
			Namespace: m.Namespace,
		}),
		prometheus.NewGoCollector(),
		prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Name:      "info",
			Help:      "Tierswap information.",
			ConstLabels: prometheus.Labels{
				"version": tierswap.Version,
			},
		}),
	)

	return r
}

func (s *server) MustRegisterMetrics(cs ...prometheus.Collector) {
	s.metricsRegistry.MustRegister(cs...)
}
