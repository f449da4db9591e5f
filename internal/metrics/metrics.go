package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound REST calls to Supabase.
	SupabaseRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supabase_rest_requests_total",
			Help: "Total number of Supabase REST requests made (by resource and status).",
		},
		[]string{"resource", "status"},
	)

	// Measures duration of REST calls to Supabase.
	SupabaseRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supabase_rest_request_duration_seconds",
			Help:    "Duration of Supabase REST requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"resource"},
	)

	// Counts probe check outcomes by name and verdict.
	ProbeChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_checks_total",
			Help: "Probe check results (by check name and verdict).",
		},
		[]string{"check", "verdict"},
	)

	NATSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "NATS publish attempts by subject and outcome.",
		},
		[]string{"subject", "outcome"},
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Latency of NATS publishes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_errors_total",
			Help: "Internal errors by component and kind.",
		},
		[]string{"component", "kind"},
	)
)

// ObserveDuration records the time taken since start and updates the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncSupabaseRequest(resource, status string) {
	SupabaseRequestsTotal.WithLabelValues(resource, status).Inc()
}

func IncProbeCheck(check, verdict string) {
	ProbeChecksTotal.WithLabelValues(check, verdict).Inc()
}

func IncNATSMessage(subject, outcome string) {
	NATSMessagesTotal.WithLabelValues(subject, outcome).Inc()
}

func IncError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}
