package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "workflow",
			Name:      "requests_total",
			Help:      "Total number of analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	computeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "veridexd",
			Subsystem: "workflow",
			Name:      "compute_duration_seconds",
			Help:      "Duration of full pipeline computations in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "workflow",
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline stage failures by stage",
		},
		[]string{"stage"},
	)
)
