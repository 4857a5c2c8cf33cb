package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_messages_consumed_total",
			Help: "Total number of queue messages consumed",
		},
		[]string{"queue", "outcome"}, // outcome: ack, nack, dead_letter
	)

	MessageProcessLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_message_process_latency_ms",
			Help:    "Message processing latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"queue"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_emails_sent_total",
			Help: "Total number of outbound email attempts",
		},
		[]string{"kind", "status"}, // status: success, failed
	)

	EnrichmentLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_enrichment_latency_ms",
			Help:    "User lookup latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"status"}, // status: ok, not_found, unavailable
	)

	SMTPSubmitLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_smtp_submit_latency_ms",
			Help:    "SMTP submission latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)
)

// RecordMessageConsumed counts one consumed message with its final disposition.
func RecordMessageConsumed(queue, outcome string, duration time.Duration) {
	MessagesConsumed.WithLabelValues(queue, outcome).Inc()
	MessageProcessLatency.WithLabelValues(queue).Observe(float64(duration.Milliseconds()))
}

// IncrementEmailSent counts one email attempt per kind.
func IncrementEmailSent(kind, status string) {
	EmailsSent.WithLabelValues(kind, status).Inc()
}

// RecordEnrichmentLatency records one user lookup.
func RecordEnrichmentLatency(status string, duration time.Duration) {
	EnrichmentLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordSMTPSubmitLatency records one mail submission.
func RecordSMTPSubmitLatency(status string, duration time.Duration) {
	SMTPSubmitLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}
