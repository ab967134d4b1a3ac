package driver

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-state/effect"
	"github.com/amp-labs/amp-state/logger"
	"github.com/amp-labs/amp-state/statemachine"
)

// Query extracts a pending effect and its ticket from a state.
type Query[S, F any] func(state S) (F, effect.Ticket, bool)

// Handler performs eff and returns the events that report its outcome. Tag them with
// ticket so the machine can tell them apart from results of superseded effects.
type Handler[F, E any] func(ctx context.Context, eff F, ticket effect.Ticket) []E

// Reactor performs every effect a machine issues exactly once, on a worker pool, and
// sends the resulting events back. Register Observe as an observer of the machine.
type Reactor[S, F, E any] struct {
	// ctx is used for the work. The context an observer receives belongs to the
	// machine's own goroutine and must not travel to the pool.
	ctx     context.Context //nolint:containedctx
	name    string
	query   Query[S, F]
	handler Handler[F, E]
	sender  Sender[E]
	pool    pond.Pool
	// last is only touched from Observe, which the machine calls serially.
	last effect.Ticket
}

// NewReactor returns a reactor. A nil pool selects DefaultPool.
func NewReactor[S, F, E any](
	ctx context.Context,
	name string,
	sender Sender[E],
	pool pond.Pool,
	query Query[S, F],
	handler Handler[F, E],
) *Reactor[S, F, E] {
	if pool == nil {
		pool = DefaultPool()
	}

	effectsTotal.WithLabelValues(name, outcomeStarted).Add(0)

	return &Reactor[S, F, E]{
		ctx:     logger.With(ctx, "reactor", name),
		name:    name,
		query:   query,
		handler: handler,
		sender:  sender,
		pool:    pool,
	}
}

// Observe starts the pending effect of change.New unless it was started before.
func (r *Reactor[S, F, E]) Observe(_ context.Context, change statemachine.Change[S]) {
	eff, ticket, ok := r.query(change.New)
	if !ok {
		return
	}

	if ticket <= r.last {
		return
	}

	r.last = ticket

	err := r.pool.Go(func() {
		r.perform(eff, ticket)
	})
	if err != nil {
		effectsTotal.WithLabelValues(r.name, outcomeRejected).Inc()

		logger.Get(r.ctx).Error("Effect not started", "ticket", ticket, "error", err)

		return
	}

	effectsTotal.WithLabelValues(r.name, outcomeStarted).Inc()
}

func (r *Reactor[S, F, E]) perform(eff F, ticket effect.Ticket) {
	start := time.Now()

	events := r.handler(r.ctx, eff, ticket)

	effectDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())

	for _, ev := range events {
		if err := r.sender.Send(r.ctx, ev); err != nil {
			feedbackErrors.WithLabelValues(r.name).Inc()

			logger.Get(r.ctx).Warn("Could not feed effect result back",
				"ticket", ticket,
				"event", statemachine.EventName(ev),
				"error", err)
		}
	}
}
