package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeWindows = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "docqa",
		Subsystem: "memory",
		Name:      "conversations_active",
		Help:      "Number of conversation memory windows held in process",
	},
)
