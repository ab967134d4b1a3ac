package driver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeStarted  = "started"
	outcomeRejected = "rejected"
)

var (
	// effectsTotal counts pending effects seen by reactors, by what happened to them.
	effectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "driver_effects_total",
		Help: "Pending effects seen by reactors, by outcome",
	}, []string{"reactor", "outcome"})

	effectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "driver_effect_duration_seconds",
		Help:    "Time spent performing an effect",
		Buckets: prometheus.DefBuckets,
	}, []string{"reactor"})

	feedbackErrors = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "driver_feedback_errors_total",
		Help: "Result events that could not be sent back to the machine",
	}, []string{"reactor"})

	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "driver_ticks_total",
		Help: "Tick events sent by tickers",
	}, []string{"ticker"})
)
