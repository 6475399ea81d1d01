package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook intake metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhooks_total",
			Help: "Total number of webhooks received",
		},
		[]string{"source", "outcome"},
	)

	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Deduplication metrics
	DedupHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dedup_hits_total",
			Help: "Total number of duplicate webhook deliveries suppressed",
		},
		[]string{"source"},
	)

	// Downstream relay metrics
	CampaignsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_campaigns_created_total",
			Help: "Total number of campaigns created in the email service",
		},
	)

	ScheduleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_schedule_failures_total",
			Help: "Total number of post-creation schedule calls that failed",
		},
	)

	FulfillmentEmails = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_fulfillment_emails_total",
			Help: "Total number of fulfillment emails sent",
		},
	)

	// Dead letter queue metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dlq_writes_total",
			Help: "Total number of records written to the dead letter queue",
		},
		[]string{"reason"},
	)
)
