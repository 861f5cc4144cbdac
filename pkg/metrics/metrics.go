// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks API latency by route and status class
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by method, route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ScansTotal tracks duplicate scans by trigger and outcome
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "duplicates",
			Name:      "scans_total",
			Help:      "Total number of duplicate scans by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// ScanDuration tracks how long a duplicate scan takes
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "duplicates",
			Name:      "scan_duration_seconds",
			Help:      "Duration of duplicate scans in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"trigger"},
	)

	// GroupsFound tracks duplicate groups returned by scans
	GroupsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "duplicates",
			Name:      "groups_found_total",
			Help:      "Total number of duplicate groups returned by scans",
		},
		[]string{"kind"},
	)

	// CustomerActionsTotal tracks archive, restore, delete and merge actions
	CustomerActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "customers",
			Name:      "actions_total",
			Help:      "Total number of customer actions by type and status",
		},
		[]string{"action", "status"},
	)

	// CustomersAffected tracks how many customers each action touched
	CustomersAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "customers",
			Name:      "affected_total",
			Help:      "Total number of customers affected by actions",
		},
		[]string{"action"},
	)

	// KafkaMessagesPublished tracks published change notifications
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of Kafka messages published",
		},
		[]string{"event_type", "status"},
	)

	// MonitorLockSkips tracks monitor ticks skipped because another replica held the lock
	MonitorLockSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "monitor",
			Name:      "lock_skips_total",
			Help:      "Total number of monitor runs skipped because the lock was held elsewhere",
		},
	)
)

// RecordScan records a duplicate scan
func RecordScan(trigger, status string, durationSeconds float64) {
	ScansTotal.WithLabelValues(trigger, status).Inc()
	ScanDuration.WithLabelValues(trigger).Observe(durationSeconds)
}

// RecordGroupFound records a returned duplicate group
func RecordGroupFound(kind string) {
	GroupsFound.WithLabelValues(kind).Inc()
}

// RecordAction records a customer action and how many customers it touched
func RecordAction(action, status string, affected int) {
	CustomerActionsTotal.WithLabelValues(action, status).Inc()
	if affected > 0 {
		CustomersAffected.WithLabelValues(action).Add(float64(affected))
	}
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(eventType, status string) {
	KafkaMessagesPublished.WithLabelValues(eventType, status).Inc()
}

// RecordHTTPRequest records a finished API request under its route template
func RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(durationSeconds)
}
