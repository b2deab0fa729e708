// Package metrics holds the Prometheus collectors shared by the task service
// and the notification relay. Collectors register with the default registry
// and are served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal counts accepted task mutations by audit action.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_mutations_total",
		Help: "Total number of committed task mutations by action",
	}, []string{"action"})

	// ConflictRetriesTotal counts read-diff-write cycles repeated after a version conflict.
	ConflictRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_conflict_retries_total",
		Help: "Number of mutation attempts retried after a concurrent write",
	}, []string{"operation"})

	// NotificationsEnqueuedTotal counts events written to the outbox.
	NotificationsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_notifications_enqueued_total",
		Help: "Notification events written to the outbox by kind",
	}, []string{"kind"})

	// NotificationsSuppressedTotal counts events dropped for having no recipients.
	NotificationsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_notifications_suppressed_total",
		Help: "Notification events skipped because no recipient remained",
	}, []string{"kind"})

	// OutboxPublishedTotal counts events delivered to the publisher.
	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_outbox_published_total",
		Help: "Outbox events acknowledged by the publisher",
	}, []string{"kind"})

	// OutboxFailuresTotal counts failed delivery attempts.
	OutboxFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_outbox_failures_total",
		Help: "Outbox delivery attempts that failed, by kind and outcome",
	}, []string{"kind", "outcome"})

	// OutboxPublishDuration observes publisher round-trip latency.
	OutboxPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskflow_outbox_publish_duration_seconds",
		Help:    "Duration of publish calls made by the outbox relay",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"})
)
