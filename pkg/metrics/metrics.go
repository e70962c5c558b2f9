// Package metrics provides Prometheus metrics for the Thistle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionRunsTotal tracks duplicate detection runs by strategy and outcome
	DetectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "runs_total",
			Help:      "Total number of duplicate detection runs by strategy and status",
		},
		[]string{"tenant_id", "strategy", "status"},
	)

	// DetectionDuration tracks duplicate detection duration in seconds
	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate detection runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tenant_id", "strategy"},
	)

	// DetectionGroupsFound tracks groups found per detection run
	DetectionGroupsFound = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "groups_found",
			Help:      "Number of duplicate groups found per detection run",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"tenant_id"},
	)

	// DetectionCacheHits tracks detection result cache hits and misses
	DetectionCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "cache_requests_total",
			Help:      "Total detection cache lookups by result",
		},
		[]string{"result"},
	)

	// MergesTotal tracks merge executions by status
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of merge executions by status",
		},
		[]string{"tenant_id", "status"},
	)

	// MergeDuration tracks merge execution duration in seconds
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge executions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tenant_id"},
	)

	// RowsRedirectedTotal tracks reference rows repointed to surviving parts
	RowsRedirectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "merge",
			Name:      "rows_redirected_total",
			Help:      "Total referencing rows repointed to surviving parts by table",
		},
		[]string{"table"},
	)
)
