// Package metrics holds the Prometheus instruments for set operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the set store.
type Metrics struct {
	VersionsCreated   *prometheus.CounterVec
	SetsDeleted       prometheus.Counter
	VersionConflicts  prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New creates and registers all set store metrics.
func New() *Metrics {
	return &Metrics{
		VersionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "geoset_versions_created_total",
			Help: "Total versions created, labeled by operation origin",
		}, []string{"operation"}),
		SetsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoset_sets_deleted_total",
			Help: "Total sets deleted (whole chains)",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "geoset_version_conflicts_total",
			Help: "Version creation attempts lost to a concurrent writer",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoset_operation_duration_seconds",
			Help:    "Duration of store-facing operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordVersionCreated increments the version counter for the operation.
func (m *Metrics) RecordVersionCreated(operation string) {
	if m == nil {
		return
	}
	m.VersionsCreated.WithLabelValues(operation).Inc()
}

// RecordSetDeleted increments the deletion counter.
func (m *Metrics) RecordSetDeleted() {
	if m == nil {
		return
	}
	m.SetsDeleted.Inc()
}

// RecordConflict increments the lost-race counter.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

// ObserveDuration records one operation's wall time in seconds.
func (m *Metrics) ObserveDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}
