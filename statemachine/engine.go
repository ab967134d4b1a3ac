// Package statemachine implements a reducer-driven state machine.
//
// A Machine owns exactly one state value. Transition runs the event through a pure
// Reducer, stores the result and then synchronously notifies every registered Observer
// with the (old, new) pair, in registration order. The machine is single-owner: it does
// no locking, and cross-goroutine use should go through the actor package.
package statemachine

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
	"go.opentelemetry.io/otel/codes"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// machineContextKey is the key used to store observability labels in Go context.
const machineContextKey contextKey = "statemachine_labels"

type registration[S any] struct {
	handle   Handle
	observer Observer[S]
}

type queuedEvent[E any] struct {
	ctx   context.Context //nolint:containedctx
	event E
}

// Machine holds the current state and applies events to it.
type Machine[S, E any] struct {
	id            uuid.UUID
	name          string
	state         S
	reduce        Reducer[S, E]
	observers     []registration[S]
	lastHandle    Handle
	queue         []queuedEvent[E]
	transitioning bool
	deepCopy      bool
	logger        Logger
}

// Option configures a Machine.
type Option func(*options)

type options struct {
	name     string
	deepCopy bool
	logger   Logger
}

// WithName sets the name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger for transition hooks.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSnapshotCopy makes the machine deep-copy the old and new state before handing them
// to each observer. Use it when the state type contains slices, maps or pointers that an
// observer could otherwise modify. Exported fields are copied deeply; unexported fields
// keep their values, but whatever they point to may still be shared.
func WithSnapshotCopy() Option {
	return func(o *options) {
		o.deepCopy = true
	}
}

// New creates a machine holding initial as its current state. Construction emits nothing;
// any initial effect must already be part of initial.
func New[S, E any](initial S, reduce Reducer[S, E], opts ...Option) (*Machine[S, E], error) {
	if reduce == nil {
		return nil, ErrNilReducer
	}

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Machine[S, E]{
		id:       uuid.New(),
		name:     sanitizeMachine(cfg.name),
		state:    initial,
		reduce:   reduce,
		deepCopy: cfg.deepCopy,
		logger:   cfg.logger,
	}, nil
}

// MustNew is like New but panics if the machine cannot be constructed.
func MustNew[S, E any](initial S, reduce Reducer[S, E], opts ...Option) *Machine[S, E] {
	m, err := New(initial, reduce, opts...)
	if err != nil {
		panic(err)
	}

	return m
}

// ID returns the unique identifier assigned at construction.
func (m *Machine[S, E]) ID() uuid.UUID {
	return m.id
}

// Name returns the machine's name.
func (m *Machine[S, E]) Name() string {
	return m.name
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	return m.state
}

// Observers returns the number of registered observers.
func (m *Machine[S, E]) Observers() int {
	return len(m.observers)
}

// AddObserver registers an observer for all future transitions. The current state is
// not replayed; use Replay for that.
func (m *Machine[S, E]) AddObserver(observer Observer[S]) Handle {
	m.lastHandle++

	m.observers = append(m.observers, registration[S]{
		handle:   m.lastHandle,
		observer: observer,
	})

	registeredObservers.WithLabelValues(m.name).Set(float64(len(m.observers)))

	return m.lastHandle
}

// RemoveObserver deregisters an observer. Unknown handles are ignored.
func (m *Machine[S, E]) RemoveObserver(handle Handle) {
	m.observers = slices.DeleteFunc(m.observers, func(r registration[S]) bool {
		return r.handle == handle
	})

	registeredObservers.WithLabelValues(m.name).Set(float64(len(m.observers)))
}

// Replay delivers a synthetic change with no old state and the current state as new.
func (m *Machine[S, E]) Replay(ctx context.Context, observer Observer[S]) {
	observer(ctx, Change[S]{New: m.snapshot(ctx, m.state)})
}

// Transition applies event to the current state. If the reducer fails, the state is left
// unchanged, no observer is called and the error is returned as a *TransitionError.
//
// Calls made from inside an observer are queued and applied once the current round of
// notifications is complete; they return nil immediately and any reducer error they
// cause is reported by the outermost call.
func (m *Machine[S, E]) Transition(ctx context.Context, event E) error {
	if m.transitioning {
		m.queue = append(m.queue, queuedEvent[E]{ctx: ctx, event: event})

		reentrantEvents.WithLabelValues(m.name).Inc()

		if m.logger != nil {
			m.logger.EventQueued(m.withLabels(ctx, event), len(m.queue))
		}

		return nil
	}

	m.transitioning = true

	defer func() {
		m.transitioning = false
		m.queue = nil
	}()

	err := m.apply(ctx, event)

	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]

		if qErr := m.apply(next.ctx, next.event); qErr != nil && err == nil {
			err = qErr
		}
	}

	return err
}

func (m *Machine[S, E]) withLabels(ctx context.Context, event E) context.Context {
	return context.WithValue(ctx, machineContextKey, ObservabilityLabels{
		MachineID:   m.id.String(),
		MachineName: m.name,
		Event:       EventName(event),
	})
}

func (m *Machine[S, E]) apply(ctx context.Context, event E) (err error) {
	ctx = m.withLabels(ctx, event)
	labels := GetObservabilityLabels(ctx)

	ctx, span := startTransitionSpan(ctx, labels)

	start := time.Now()

	defer func() {
		outcome := outcomeSuccess
		if err != nil {
			outcome = outcomeError

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "applied")
		}

		span.End()

		transitionsTotal.WithLabelValues(m.name, labels.Event, outcome).Inc()
		transitionDuration.WithLabelValues(m.name, outcome).Observe(time.Since(start).Seconds())
	}()

	next, err := m.reduce(m.state, event)
	if err != nil {
		err = WrapTransitionError(m.name, labels.Event, err)

		if m.logger != nil {
			m.logger.TransitionFailed(ctx, time.Since(start), err)
		}

		return err
	}

	old := m.state
	m.state = next

	// Observers added or removed during this round only take effect on the next one.
	observers := slices.Clone(m.observers)

	for _, reg := range observers {
		reg.observer(ctx, Change[S]{
			Old:    m.snapshot(ctx, old),
			HasOld: true,
			New:    m.snapshot(ctx, next),
		})
	}

	observerNotifications.WithLabelValues(m.name).Add(float64(len(observers)))

	if m.logger != nil {
		m.logger.TransitionApplied(ctx, time.Since(start), len(observers))
	}

	return nil
}

func (m *Machine[S, E]) snapshot(ctx context.Context, state S) S {
	if !m.deepCopy {
		return state
	}

	var out S

	if err := deepcopy.Copy(&out, &state); err != nil {
		slog.WarnContext(ctx, "state snapshot copy failed, delivering shallow copy",
			"machine", m.name, "error", err)

		return state
	}

	return out
}
