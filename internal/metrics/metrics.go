// Package metrics provides Prometheus instrumentation for the conversion
// pipeline. All metrics are prefixed with "media_conversions_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion metrics
var (
	ConversionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_conversions_completed_total",
			Help: "Total number of derived files produced",
		},
		[]string{"conversion"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_conversions_duration_seconds",
			Help:    "Time spent producing one derived file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"conversion"},
	)

	CollectionsCleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_conversions_collections_cleared_total",
			Help: "Total number of cleared media collections",
		},
	)
)

// Queue metrics
var (
	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_conversions_jobs_dispatched_total",
			Help: "Total number of conversion jobs submitted to a queue",
		},
		[]string{"queue", "status"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_conversions_jobs_processed_total",
			Help: "Total number of conversion jobs executed by workers",
		},
		[]string{"queue", "status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
