package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are labeled with "subsystem" and "actor" so that several machines in one
// process can be told apart.

var (
	actorStarted = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_started",
		Help: "The total number of machine actors started",
	})

	actorStopped = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_stopped",
		Help: "The total number of machine actors stopped",
	})

	// actorPanic counts the number of times an actor recovered from a panic in a reducer
	// or observer.
	actorPanic = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_panic",
		Help: "The total number of actors that recovered from a panic",
	}, []string{"subsystem", "actor"})

	aliveActors = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "actor_alive_actors",
		Help: "The total number of actors alive",
	}, []string{"subsystem", "actor"})

	// enqueuedMessages is sampled by the actor loop every actorMetricsTickerTime.
	enqueuedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "actor_enqueued_messages",
		Help: "The total number of messages enqueued",
	}, []string{"subsystem", "actor"})

	submitCount = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_submit_count",
		Help: "The total number of messages submitted",
	}, []string{"subsystem", "actor", "kind"})

	submitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "actor_submit_time",
		Help:    "The time spent waiting for a message to be accepted by the inbox",
		Buckets: waitBuckets,
	}, []string{"subsystem", "actor"})

	receiveTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "actor_receive_time",
		Help:    "The time spent waiting for a reply",
		Buckets: waitBuckets,
	}, []string{"subsystem", "actor"})

	processedMessages = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "actor_processed_messages",
		Help: "The total number of messages processed",
	}, []string{"subsystem", "actor"})

	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "actor_processing_time",
		Help:    "The time spent applying a message to the machine",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), //nolint:mnd
	}, []string{"subsystem", "actor"})
)

var waitBuckets = []float64{ //nolint:gochecknoglobals
	0.001, // 1ms
	0.01,  // 10ms
	0.1,   // 100ms
	1,     // 1s
	10,    // 10s
	60,    // 1m
}
