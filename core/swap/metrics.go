package swap

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/redesblock/tierswap/core/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	Deposits         prometheus.Counter
	DepositsRejected *prometheus.CounterVec
	ConsumedAmount   prometheus.Counter
	CreditedAmount   prometheus.Counter
	AdminUpdates     *prometheus.CounterVec
	Claims           prometheus.Counter
	ClaimedAmount    prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "swap"

	return metrics{
		Deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "deposits",
			Help:      "Number of accepted deposits.",
		}),
		DepositsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "deposits_rejected",
			Help:      "Number of rejected deposits by reason.",
		}, []string{"reason"}),
		ConsumedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "consumed_amount",
			Help:      "Amount of tokens taken by accepted deposits.",
		}),
		CreditedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "credited_amount",
			Help:      "Entitlement credited by accepted deposits.",
		}),
		AdminUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "admin_updates",
			Help:      "Number of administrative changes by operation.",
		}, []string{"operation"}),
		Claims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "claims",
			Help:      "Number of owner claims.",
		}),
		ClaimedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "claimed_amount",
			Help:      "Amount of tokens claimed by the owner.",
		}),
	}
}

func (l *Ledger) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(l.metrics)
}
