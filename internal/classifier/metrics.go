package classifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Total number of classifications by provider and result",
		},
		[]string{"provider", "result"},
	)

	classificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veridexd",
			Subsystem: "classifier",
			Name:      "classification_duration_seconds",
			Help:      "Duration of classifications in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func observeClassification(provider string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	classificationsTotal.WithLabelValues(provider, result).Inc()
	classificationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
