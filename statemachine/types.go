package statemachine

import (
	"context"
	"fmt"
	"strings"
)

// Reducer computes the next state from the current state and an event. It must be
// pure: no I/O, and equal inputs always give equal outputs. A returned error means
// the reducer could not handle the event (for example an event type it does not
// know) and the machine keeps its current state.
type Reducer[S, E any] func(state S, event E) (S, error)

// Pure adapts a total reduce function that cannot fail.
func Pure[S, E any](reduce func(state S, event E) S) Reducer[S, E] {
	return func(state S, event E) (S, error) {
		return reduce(state, event), nil
	}
}

// Change is delivered to observers after every transition.
// HasOld is false only for the synthetic notification produced by Replay.
type Change[S any] struct {
	Old    S
	HasOld bool
	New    S
}

// Observer is called synchronously with every applied transition.
type Observer[S any] func(ctx context.Context, change Change[S])

// Handle identifies a registered observer.
type Handle uint64

// Named lets an event type choose the label used for it in logs, metrics and spans.
type Named interface {
	EventName() string
}

// EventName returns the label for an event: its EventName if it implements Named,
// otherwise its unqualified Go type name.
func EventName(event any) string {
	if named, ok := event.(Named); ok {
		return named.EventName()
	}

	name := fmt.Sprintf("%T", event)
	name = strings.TrimPrefix(name, "*")

	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}
