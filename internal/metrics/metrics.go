package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "webhook_attempts_total",
			Help:      "Total webhook delivery attempts.",
		},
		[]string{"outcome"}, // "delivered", "retry", "failed"
	)

	DeliveriesTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "deliveries_terminal_total",
			Help:      "Delivery records that reached a terminal state.",
		},
		[]string{"status"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "jobs_processed_total",
			Help:      "Send jobs processed by the worker pool.",
		},
		[]string{"status"}, // "completed", "retry", "failed", "not_ready"
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatrelay",
			Name:      "provider_send_duration_seconds",
			Help:      "Duration of provider send calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
