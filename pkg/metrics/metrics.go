package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProvisioningAttempts records account provisioning attempts by step and result (success|failure).
	ProvisioningAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asine_provisioning_attempts_total",
			Help: "Total number of account provisioning attempts",
		},
		[]string{"step", "result"},
	)

	// WebhookEvents counts processed billing webhook events by type and result (processed|ignored|error).
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asine_webhook_events_total",
			Help: "Total number of billing webhook events received",
		},
		[]string{"type", "result"},
	)

	// VerificationOutcomes counts email verification attempts (verified|already_verified|invalid).
	VerificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asine_verification_outcomes_total",
			Help: "Total number of email verification attempts",
		},
		[]string{"outcome"},
	)

	// EmailDispatches counts outbound emails by result (sent|failed).
	EmailDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asine_email_dispatches_total",
			Help: "Total number of outbound email dispatches",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asine_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
