package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amp-labs/amp-state/actor"
	"github.com/amp-labs/amp-state/logger"
)

// Ticker sends the same event to a machine at a fixed interval while it is running, for
// example a "second passed" event for a countdown. The first tick comes one interval
// after Start.
type Ticker[E any] struct {
	name     string
	sender   Sender[E]
	interval time.Duration
	event    E

	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}
}

// NewTicker returns a stopped ticker.
func NewTicker[E any](name string, sender Sender[E], interval time.Duration, event E) *Ticker[E] {
	return &Ticker[E]{
		name:     name,
		sender:   sender,
		interval: interval,
		event:    event,
	}
}

// Start begins ticking. It does nothing if the ticker is already running. Ticking stops
// on Stop, when ctx is done or when the machine's actor has stopped; in the latter two
// cases the ticker reports not running and can be started again.
func (t *Ticker[E]) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quit != nil {
		return
	}

	t.quit = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(ctx, t.quit, t.done)
}

func (t *Ticker[E]) run(ctx context.Context, quit, done chan struct{}) {
	defer close(done)
	defer t.release(quit)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			ticksTotal.WithLabelValues(t.name).Inc()

			err := t.sender.Send(ctx, t.event)
			if errors.Is(err, actor.ErrDeadActor) {
				return
			}

			if err != nil {
				logger.Get(ctx).Warn("Tick not delivered", "ticker", t.name, "error", err)
			}
		}
	}
}

// release forgets the run that owns quit, unless Stop already took it over.
func (t *Ticker[E]) release(quit chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quit == quit {
		t.quit, t.done = nil, nil
	}
}

// Stop stops ticking and waits for the ticking goroutine to exit. It does nothing if the
// ticker is not running.
func (t *Ticker[E]) Stop() {
	t.mu.Lock()
	quit, done := t.quit, t.done
	t.quit, t.done = nil, nil
	t.mu.Unlock()

	if quit == nil {
		return
	}

	close(quit)
	<-done
}

// Running reports whether the ticker has been started and not stopped.
func (t *Ticker[E]) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.quit != nil
}
