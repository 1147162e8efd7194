package logging_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/metrics"
	"github.com/sirupsen/logrus"
)

func TestLevelFiltering(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := logging.New(buf, logrus.InfoLevel)

	logger.Debug("hidden debug line")
	logger.Infof("visible %s line", "info")

	out := buf.String()
	if strings.Contains(out, "hidden debug line") {
		t.Errorf("debug line logged at info level: %q", out)
	}
	if !strings.Contains(out, "visible info line") {
		t.Errorf("info line not logged: %q", out)
	}
}

func TestLevelMetrics(t *testing.T) {
	logger := logging.New(new(bytes.Buffer), logrus.TraceLevel)

	logger.Error("one")
	logger.Error("two")
	logger.Warning("three")

	c, ok := logger.(metrics.Collector)
	if !ok {
		t.Fatal("logger does not expose metrics")
	}

	counts := make(map[string]float64)
	for _, collector := range c.Metrics() {
		ch := make(chan prometheus.Metric, 1)
		collector.Collect(ch)
		m := <-ch
		var d dto.Metric
		if err := m.Write(&d); err != nil {
			t.Fatal(err)
		}
		counts[m.Desc().String()] = d.GetCounter().GetValue()
	}

	var errors, warnings float64
	for desc, v := range counts {
		switch {
		case strings.Contains(desc, "tierswap_log_error_count"):
			errors = v
		case strings.Contains(desc, "tierswap_log_warn_count"):
			warnings = v
		}
	}
	if errors != 2 {
		t.Errorf("got %v error lines, want 2", errors)
	}
	if warnings != 1 {
		t.Errorf("got %v warning lines, want 1", warnings)
	}
}

func TestHTTPAccessLogHandler(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := logging.New(buf, logrus.InfoLevel)

	h := logging.NewHTTPAccessLogHandler(logger, logrus.InfoLevel, "api access")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	out := buf.String()
	for _, want := range []string{"api access", "status=418", "method=GET", "uri=/config", "size=15"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log %q does not contain %q", out, want)
		}
	}
}
