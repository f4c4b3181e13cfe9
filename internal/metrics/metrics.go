// Package metrics exposes the engine's Prometheus instruments. Everything
// registers on the default registry and is served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InspectionsTotal counts finished inspections by product and outcome.
	InspectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_runs_total",
			Help: "Total inspections executed, by product and overall outcome",
		},
		[]string{"product", "outcome"}, // outcome: pass, fail, error
	)

	// InspectionDuration tracks end-to-end inspection latency.
	InspectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspection_duration_seconds",
			Help:    "End-to-end inspection processing time",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// ROIResults counts per-ROI outcomes by type.
	ROIResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspection_roi_results_total",
			Help: "Per-ROI outcomes by roi type",
		},
		[]string{"roi_type", "outcome"}, // outcome: pass, fail
	)

	// GoldenPromotions counts best_golden swaps.
	GoldenPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "golden_promotions_total",
			Help: "Golden reference promotions (alternate replacing best_golden)",
		},
	)

	// LinkingRequests counts linking-service call outcomes.
	LinkingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcode_linking_requests_total",
			Help: "Linking service call outcomes",
		},
		[]string{"outcome"}, // linked, no_result, fallback
	)

	// ActiveSessions gauges the live session registry size.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Sessions currently held in the registry",
		},
	)
)
