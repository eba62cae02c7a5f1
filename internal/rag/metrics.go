package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// retrievalDuration tracks ranking latency.
	// Labels: strategy (hybrid, semantic)
	retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of passage retrieval in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// questionsTotal counts ask requests.
	// Labels: result (success, not_found, empty, generation_error, error)
	questionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "rag",
			Name:      "questions_total",
			Help:      "Total number of questions answered",
		},
		[]string{"result"},
	)

	chunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "rag",
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks written to vector stores",
		},
	)
)
