// Package actor serializes access to a statemachine.Machine from many goroutines.
//
// The machine itself does no locking. Run hands it to a single goroutine that drains a
// mailbox of commands one at a time, so transitions, observer registration and state
// reads issued from anywhere are applied in arrival order. Observers registered through
// a Ref run on that goroutine.
package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amp-labs/amp-state/logger"
	"github.com/amp-labs/amp-state/statemachine"
	"go.uber.org/atomic"
)

// actorMetricsTickerTime is the interval at which the inbox depth gauge is sampled.
const actorMetricsTickerTime = 10 * time.Second

var (
	// ErrDeadActor is returned when attempting to interact with a stopped actor.
	ErrDeadActor = errors.New("actor is dead")
	// ErrActorPanic is returned when a reducer or observer panics while the actor is
	// applying a message.
	ErrActorPanic = errors.New("panic in actor")
	// ErrReentrantRequest is returned by Request and State when called from an observer
	// running on the same actor. The reply could never be delivered.
	ErrReentrantRequest = errors.New("request from inside the actor loop")

	errObserveAbandoned = errors.New("observe abandoned by caller")
)

const (
	kindSend      = "send"
	kindRequest   = "request"
	kindState     = "state"
	kindObserve   = "observe"
	kindUnobserve = "unobserve"
)

type loopKey struct{}

// loopToken marks contexts handed out while one command is being processed. It goes
// stale once that command is done.
type loopToken struct {
	owner  any
	active atomic.Bool
}

type reply[S any] struct {
	state S
	err   error
}

type command[S, E any] struct {
	ctx   context.Context //nolint:containedctx
	kind  string
	apply func(ctx context.Context, m *statemachine.Machine[S, E]) error
	// reply is nil for fire-and-forget messages, otherwise buffered with room for one.
	reply chan reply[S]
}

// Ref is a reference to a running actor. It is safe for concurrent use.
type Ref[S, E any] struct {
	machine   *statemachine.Machine[S, E]
	inbox     chan command[S, E]
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	dead      atomic.Bool
	name      string
	subsystem string
}

// Run starts the actor that owns m and returns a reference to it. The depth parameter is
// the mailbox buffer size (0 for unbuffered). The actor runs until ctx is canceled or
// Stop is called. After Run, m must only be touched through the returned Ref.
func Run[S, E any](ctx context.Context, m *statemachine.Machine[S, E], name string, depth int) *Ref[S, E] {
	ref := &Ref[S, E]{
		machine:   m,
		inbox:     make(chan command[S, E], depth),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		name:      name,
		subsystem: logger.GetSubsystem(ctx),
	}

	processedMessages.WithLabelValues(ref.subsystem, name).Add(0)
	enqueuedMessages.WithLabelValues(ref.subsystem, name).Set(0)
	actorPanic.WithLabelValues(ref.subsystem, name).Add(0)
	aliveActors.WithLabelValues(ref.subsystem, name).Inc()

	go ref.loop(ctx)

	return ref
}

func (r *Ref[S, E]) loop(ctx context.Context) {
	ticker := time.NewTicker(actorMetricsTickerTime)

	actorStarted.Inc()

	defer func() {
		ticker.Stop()
		r.dead.Store(true)
		aliveActors.WithLabelValues(r.subsystem, r.name).Dec()
		actorStopped.Inc()
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			enqueuedMessages.WithLabelValues(r.subsystem, r.name).Set(float64(len(r.inbox)))
		case cmd := <-r.inbox:
			r.process(cmd)
		}
	}
}

// getPanicErr wraps a panic value into an error, preserving the original error if
// possible. The stack travels with the error to wherever it is logged.
func getPanicErr(name string, err any, stack []byte) error {
	var wrapped error

	if e, ok := err.(error); ok {
		wrapped = fmt.Errorf("%w %s: %w", ErrActorPanic, name, e)
	} else {
		wrapped = fmt.Errorf("%w %s: %v", ErrActorPanic, name, err)
	}

	return logger.AnnotateError(wrapped, "stack", string(stack))
}

func (r *Ref[S, E]) process(cmd command[S, E]) {
	start := time.Now()
	token := &loopToken{owner: r}
	token.active.Store(true)

	ctx := context.WithValue(cmd.ctx, loopKey{}, token)

	defer func() {
		processedMessages.WithLabelValues(r.subsystem, r.name).Inc()
		processingTime.WithLabelValues(r.subsystem, r.name).Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if p := recover(); p != nil {
			actorPanic.WithLabelValues(r.subsystem, r.name).Inc()

			err := getPanicErr(r.name, p, debug.Stack())

			logger.Get(ctx).Error("actor recovered from panic",
				"actor", r.name,
				"kind", cmd.kind,
				"error", err)

			r.respond(cmd, reply[S]{err: err})
		}
	}()

	err := func() error {
		// Stale before anyone hears back, so a captured context cannot race the next message.
		defer token.active.Store(false)

		return cmd.apply(ctx, r.machine)
	}()
	if err != nil && cmd.reply == nil {
		logger.Get(ctx).Error("error applying actor message",
			"actor", r.name, "kind", cmd.kind, "error", err)
	}

	r.respond(cmd, reply[S]{state: r.machine.State(), err: err})
}

func (r *Ref[S, E]) respond(cmd command[S, E], rep reply[S]) {
	if cmd.reply != nil {
		cmd.reply <- rep
	}
}

// onLoop reports whether ctx was handed out by this actor's own loop, i.e. the caller
// is an observer running on it.
func (r *Ref[S, E]) onLoop(ctx context.Context) bool {
	token, ok := ctx.Value(loopKey{}).(*loopToken)

	return ok && token.owner == r && token.active.Load()
}

func (r *Ref[S, E]) submit(ctx context.Context, cmd command[S, E]) error {
	if r.dead.Load() {
		return ErrDeadActor
	}

	submitCount.WithLabelValues(r.subsystem, r.name, cmd.kind).Inc()

	begin := time.Now()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrDeadActor
	case r.inbox <- cmd:
	}

	submitTime.WithLabelValues(r.subsystem, r.name).Observe(time.Since(begin).Seconds())

	return nil
}

func (r *Ref[S, E]) call(
	ctx context.Context,
	kind string,
	apply func(context.Context, *statemachine.Machine[S, E]) error,
) (S, error) {
	var zero S

	if r.onLoop(ctx) {
		return zero, ErrReentrantRequest
	}

	cmd := command[S, E]{
		// The command runs even if the caller gives up waiting.
		ctx:   context.WithoutCancel(ctx),
		kind:  kind,
		apply: apply,
		reply: make(chan reply[S], 1),
	}

	if err := r.submit(ctx, cmd); err != nil {
		return zero, err
	}

	start := time.Now()

	select {
	case rep := <-cmd.reply:
		receiveTime.WithLabelValues(r.subsystem, r.name).Observe(time.Since(start).Seconds())

		return rep.state, rep.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.done:
		select {
		case rep := <-cmd.reply:
			return rep.state, rep.err
		default:
			return zero, ErrDeadActor
		}
	}
}

// Name returns the actor's name.
func (r *Ref[S, E]) Name() string {
	return r.name
}

// Alive returns true if the actor is still running.
func (r *Ref[S, E]) Alive() bool {
	return !r.dead.Load()
}

// Stop signals the actor to shut down. Messages still in the mailbox are dropped and
// their callers receive ErrDeadActor. It is safe to call multiple times.
func (r *Ref[S, E]) Stop() {
	r.stopOnce.Do(func() {
		r.dead.Store(true)
		close(r.stop)
	})
}

// Wait blocks until the actor has fully stopped processing messages.
func (r *Ref[S, E]) Wait() {
	<-r.done
}

// Done is closed once the actor has stopped.
func (r *Ref[S, E]) Done() <-chan struct{} {
	return r.done
}

// Send enqueues event without waiting for it to be applied. Reducer errors are logged.
//
// When called with the context an observer of this actor received, the event is handed
// straight to the machine, which applies it after the current notification round. That
// context marks the loop goroutine, so an observer must not hand it to another
// goroutine while the callback runs: a Send with it from there would touch the machine
// off the loop. Once the message that ran the observer is done, the context is treated
// like any other and Send goes through the mailbox.
func (r *Ref[S, E]) Send(ctx context.Context, event E) error {
	if r.onLoop(ctx) {
		return r.machine.Transition(ctx, event)
	}

	return r.submit(ctx, command[S, E]{
		ctx:  context.WithoutCancel(ctx),
		kind: kindSend,
		apply: func(ctx context.Context, m *statemachine.Machine[S, E]) error {
			return m.Transition(ctx, event)
		},
	})
}

// Request applies event and returns the resulting state, or the reducer's error with the
// state left unchanged.
func (r *Ref[S, E]) Request(ctx context.Context, event E) (S, error) {
	return r.call(ctx, kindRequest, func(ctx context.Context, m *statemachine.Machine[S, E]) error {
		return m.Transition(ctx, event)
	})
}

// State returns the current state as seen after every message queued before it.
func (r *Ref[S, E]) State(ctx context.Context) (S, error) {
	return r.call(ctx, kindState, func(context.Context, *statemachine.Machine[S, E]) error {
		return nil
	})
}

// Observe registers observer on the machine. When replay is set, the observer is
// immediately called with the current state and no old state, before any later
// transition can reach it. If ctx ends before the loop gets to the registration, it is
// dropped and the error returned; a returned error never leaves an observer behind.
//
// The context passed to the observer is only valid inside the callback.
func (r *Ref[S, E]) Observe(
	ctx context.Context,
	observer statemachine.Observer[S],
	replay bool,
) (statemachine.Handle, error) {
	if r.onLoop(ctx) {
		return attach(ctx, r.machine, observer, replay), nil
	}

	var (
		mu        sync.Mutex
		handle    statemachine.Handle
		attached  bool
		abandoned bool
	)

	_, err := r.call(ctx, kindObserve, func(ctx context.Context, m *statemachine.Machine[S, E]) error {
		mu.Lock()
		defer mu.Unlock()

		// Nobody would hold the handle, so the observer could never be removed.
		if abandoned {
			return errObserveAbandoned
		}

		handle = attach(ctx, m, observer, replay)
		attached = true

		return nil
	})

	mu.Lock()
	defer mu.Unlock()

	if attached {
		return handle, nil
	}

	abandoned = true

	return 0, err
}

func attach[S, E any](
	ctx context.Context,
	m *statemachine.Machine[S, E],
	observer statemachine.Observer[S],
	replay bool,
) statemachine.Handle {
	handle := m.AddObserver(observer)

	if replay {
		m.Replay(ctx, observer)
	}

	return handle
}

// Unobserve deregisters the observer behind handle. Unknown handles are ignored.
func (r *Ref[S, E]) Unobserve(ctx context.Context, handle statemachine.Handle) error {
	if r.onLoop(ctx) {
		r.machine.RemoveObserver(handle)

		return nil
	}

	_, err := r.call(ctx, kindUnobserve, func(_ context.Context, m *statemachine.Machine[S, E]) error {
		m.RemoveObserver(handle)

		return nil
	})

	return err
}
