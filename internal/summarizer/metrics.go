package summarizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// summariesTotal counts finished summary requests.
	// Labels: status (completed, canceled, error)
	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "summary",
			Name:      "requests_total",
			Help:      "Total number of summary requests by outcome",
		},
		[]string{"status"},
	)

	// stageCalls counts completion calls per stage.
	// Labels: stage (leaf, fold)
	stageCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "summary",
			Name:      "stage_calls_total",
			Help:      "Total number of completion calls per summarization stage",
		},
		[]string{"stage"},
	)

	summaryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "summary",
			Name:      "duration_seconds",
			Help:      "Duration of uncached summarizations in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	truncatedInputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "summary",
			Name:      "truncated_inputs_total",
			Help:      "Total number of prompts cut to the input limit",
		},
	)

	activeTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "summary",
			Name:      "tasks_active",
			Help:      "Number of summarization tasks in flight",
		},
	)
)
