package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics holds the Prometheus collectors exposed on /metrics. It
// complements the OTel tracer/meter wired in otel.go: OTel carries
// trace spans and OTLP-exported metrics for the configured collector,
// while these collectors back a local Prometheus scrape endpoint.
type PromMetrics struct {
	// IterationCounter counts ReAct loop iterations by terminal status
	// (completed|failed|tool_call).
	IterationCounter *prometheus.CounterVec

	// ToolDuration measures tool dispatch latency in seconds, by tool name
	// and outcome (ok|error).
	ToolDuration *prometheus.HistogramVec

	// CompressionEvents counts context-window compression attempts by
	// outcome (start|done|failed).
	CompressionEvents *prometheus.CounterVec
}

// NewPromMetrics registers the collectors against the default registry.
func NewPromMetrics() *PromMetrics {
	return &PromMetrics{
		IterationCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "manifold_agent_iterations_total",
			Help: "ReAct loop iterations, by terminal status.",
		}, []string{"status"}),
		ToolDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manifold_tool_duration_seconds",
			Help:    "Tool dispatch latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool", "outcome"}),
		CompressionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "manifold_compression_events_total",
			Help: "Context-window compression attempts, by outcome.",
		}, []string{"outcome"}),
	}
}
