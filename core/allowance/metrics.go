package allowance

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/redesblock/tierswap/core/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	CacheHits             prometheus.Counter
	CacheMisses           prometheus.Counter
	SignatureRejections   prometheus.Counter
	Commits               prometheus.Counter
	AdministrativeUpdates prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "allowance"

	return metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "cache_hits",
			Help:      "Number of allowance reads served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "cache_misses",
			Help:      "Number of allowance reads that went to the state store.",
		}),
		SignatureRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "signature_rejections",
			Help:      "Number of first use allowances rejected for an invalid validator signature.",
		}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "commits",
			Help:      "Number of allowances written by deposits.",
		}),
		AdministrativeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "administrative_updates",
			Help:      "Number of allowances overwritten by administrators.",
		}),
	}
}

func (s *Store) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
