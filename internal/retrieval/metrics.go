package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Total number of trusted-source searches by result",
		},
		[]string{"result"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "veridexd",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "Duration of trusted-source searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	documentsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "retrieval",
			Name:      "documents_ingested_total",
			Help:      "Total number of trusted-source documents ingested",
		},
	)
)
