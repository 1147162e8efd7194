package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redesblock/tierswap/core/metrics"
)

func TestPrometheusCollectorsFromFields(t *testing.T) {
	s := struct {
		Counter   prometheus.Counter
		Gauge     prometheus.Gauge
		Histogram prometheus.Histogram
		Label     string
		unexported prometheus.Counter
	}{
		Counter:    prometheus.NewCounter(prometheus.CounterOpts{Name: "c"}),
		Gauge:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "g"}),
		Histogram:  prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h"}),
		Label:      "label",
		unexported: prometheus.NewCounter(prometheus.CounterOpts{Name: "u"}),
	}

	got := metrics.PrometheusCollectorsFromFields(s)
	if len(got) != 3 {
		t.Fatalf("got %d collectors, want 3", len(got))
	}
}
