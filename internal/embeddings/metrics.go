package embeddings

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "embeddings",
			Name:      "requests_total",
			Help:      "Total number of embedding requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veridexd",
			Subsystem: "embeddings",
			Name:      "request_duration_seconds",
			Help:      "Duration of embedding requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func observeEmbedding(kind string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	requestsTotal.WithLabelValues(kind, result).Inc()
	requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
