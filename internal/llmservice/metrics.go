package llmservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// completionsTotal counts completion calls.
	// Labels: result (success, error, empty)
	completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Total number of completion service calls",
		},
		[]string{"result"},
	)

	completionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Duration of completion service calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
)
