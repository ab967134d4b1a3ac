// Package driver connects state machines to the outside world: it binds observers to a
// lifecycle, runs pending effects once each and feeds periodic ticks.
package driver

import (
	"context"

	"github.com/amp-labs/amp-state/statemachine"
)

// Observable is something observers can be attached to. *actor.Ref implements it.
type Observable[S any] interface {
	Observe(ctx context.Context, observer statemachine.Observer[S], replay bool) (statemachine.Handle, error)
	Unobserve(ctx context.Context, handle statemachine.Handle) error
}

// Sender accepts events for a machine. *actor.Ref implements it.
type Sender[E any] interface {
	Send(ctx context.Context, event E) error
}

// LocalMachine adapts a machine that is only ever used from one goroutine. Drivers that
// do work on other goroutines, like Reactor and Ticker, need an actor instead.
type LocalMachine[S, E any] struct {
	machine *statemachine.Machine[S, E]
}

// Local wraps m.
func Local[S, E any](m *statemachine.Machine[S, E]) *LocalMachine[S, E] {
	return &LocalMachine[S, E]{machine: m}
}

// Observe adds observer and, when replay is set, calls it once with the current state.
func (l *LocalMachine[S, E]) Observe(
	ctx context.Context,
	observer statemachine.Observer[S],
	replay bool,
) (statemachine.Handle, error) {
	handle := l.machine.AddObserver(observer)

	if replay {
		l.machine.Replay(ctx, observer)
	}

	return handle, nil
}

// Unobserve removes the observer behind handle.
func (l *LocalMachine[S, E]) Unobserve(_ context.Context, handle statemachine.Handle) error {
	l.machine.RemoveObserver(handle)

	return nil
}

// Send applies event right away.
func (l *LocalMachine[S, E]) Send(ctx context.Context, event E) error {
	return l.machine.Transition(ctx, event)
}
