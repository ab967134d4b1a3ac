package driver

import (
	"context"
	"sync"

	"github.com/amp-labs/amp-state/statemachine"
)

// Binding keeps an observer attached while its owner is active, for instance a screen
// that is visible. Start and Stop may be called any number of times in any order.
type Binding[S any] struct {
	source   Observable[S]
	observer statemachine.Observer[S]
	replay   bool

	mu       sync.Mutex
	handle   statemachine.Handle
	attached bool
}

// Bind prepares a binding of observer to source. Nothing is attached until Start. With
// replay set, every Start delivers the current state once with no old state, so the
// owner can render before the next transition.
func Bind[S any](source Observable[S], observer statemachine.Observer[S], replay bool) *Binding[S] {
	return &Binding[S]{
		source:   source,
		observer: observer,
		replay:   replay,
	}
}

// Start attaches the observer unless it is already attached.
func (b *Binding[S]) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return nil
	}

	handle, err := b.source.Observe(ctx, b.observer, b.replay)
	if err != nil {
		return err
	}

	b.handle = handle
	b.attached = true

	return nil
}

// Stop detaches the observer if it is attached.
func (b *Binding[S]) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if err := b.source.Unobserve(ctx, b.handle); err != nil {
		return err
	}

	b.attached = false

	return nil
}

// Active reports whether the observer is attached.
func (b *Binding[S]) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.attached
}
