package synthesis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	synthesesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veridexd",
			Subsystem: "synthesis",
			Name:      "syntheses_total",
			Help:      "Total number of verdict syntheses by provider and result",
		},
		[]string{"provider", "result"},
	)

	synthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veridexd",
			Subsystem: "synthesis",
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of verdict syntheses in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func observeSynthesis(provider string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	synthesesTotal.WithLabelValues(provider, result).Inc()
	synthesisDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
