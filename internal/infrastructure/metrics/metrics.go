// Package metrics exposes Prometheus collectors for the entitlement core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncAttempts counts metafield sync attempts that reached the Admin API.
	SyncAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "block_entitlement_sync_attempts_total",
		Help: "Number of metafield sync attempts sent to the Shopify Admin API.",
	})

	// SyncSkips counts syncs skipped by the cooldown gate.
	SyncSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "block_entitlement_sync_skips_total",
		Help: "Number of metafield syncs skipped because the cooldown was active.",
	})

	// SyncFailures counts syncs that failed at the mutation level or wrote
	// zero metafields.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "block_entitlement_sync_failures_total",
		Help: "Number of metafield syncs that failed outright.",
	})

	// SubscriptionTransitions counts subscription state transitions by
	// resulting status.
	SubscriptionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "block_entitlement_subscription_transitions_total",
		Help: "Number of subscription state transitions, labelled by new status.",
	}, []string{"status"})

	// PurchasesRecorded counts completed one-time purchases written.
	PurchasesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "block_entitlement_purchases_recorded_total",
		Help: "Number of completed one-time block purchases recorded.",
	})

	// WebhookEvents counts verified webhook deliveries by topic.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "block_entitlement_webhook_events_total",
		Help: "Number of verified webhook deliveries, labelled by topic.",
	}, []string{"topic"})
)
