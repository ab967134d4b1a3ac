package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome constants.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metric definitions with appropriate labels.
var (
	// transitionsTotal counts applied and rejected transitions per machine and event.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_transitions_total",
		Help: "Total number of transitions by machine, event and outcome (success or error)",
	}, []string{"machine", "event", "outcome"})

	// transitionDuration tracks reduce + notify time for a single transition.
	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "statemachine_transition_duration_seconds",
		Help:    "Duration of a transition including observer notification, by machine and outcome",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"machine", "outcome"})

	// observerNotifications counts observer callbacks invoked.
	observerNotifications = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_observer_notifications_total",
		Help: "Total number of observer callbacks invoked by machine",
	}, []string{"machine"})

	// registeredObservers tracks the number of observers currently attached.
	registeredObservers = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "statemachine_observers",
		Help: "Number of observers currently registered by machine",
	}, []string{"machine"})

	// reentrantEvents counts events submitted from inside an observer and deferred.
	reentrantEvents = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "statemachine_reentrant_events_total",
		Help: "Total number of events queued because they were sent during observer notification",
	}, []string{"machine"})
)

func sanitizeMachine(name string) string {
	if name == "" {
		return "unknown"
	}

	return name
}
