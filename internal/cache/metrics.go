package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "cache",
			Name:      "commits_total",
			Help:      "Total number of reservation commits by outcome",
		},
		[]string{"outcome"},
	)

	waitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "cache",
			Name:      "waits_total",
			Help:      "Total number of callers parked behind in-flight analyses",
		},
	)

	reservationsInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "veridexd",
			Subsystem: "cache",
			Name:      "reservations_inflight",
			Help:      "Number of reservations currently being computed",
		},
	)
)
