package statemachine

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count int
	Tags  []string
}

type counterEvent interface {
	isCounterEvent()
}

type increment struct{ By int }

type tag struct{ Name string }

type explode struct{}

func (increment) isCounterEvent() {}
func (tag) isCounterEvent()       {}
func (explode) isCounterEvent()   {}

var errExplode = errors.New("exploded")

func reduceCounter(state counterState, event counterEvent) (counterState, error) {
	switch ev := event.(type) {
	case increment:
		state.Count += ev.By

		return state, nil
	case tag:
		state.Tags = append(append([]string(nil), state.Tags...), ev.Name)

		return state, nil
	case explode:
		return state, errExplode
	default:
		return state, UnknownEvent(event)
	}
}

func newCounter(t *testing.T, opts ...Option) *Machine[counterState, counterEvent] {
	t.Helper()

	m, err := New[counterState, counterEvent](counterState{}, reduceCounter,
		append([]Option{WithName(t.Name())}, opts...)...)
	require.NoError(t, err)

	return m
}

type recorded struct {
	observer string
	change   Change[counterState]
}

func TestNewRequiresReducer(t *testing.T) {
	t.Parallel()

	_, err := New[counterState, counterEvent](counterState{}, nil)
	require.ErrorIs(t, err, ErrNilReducer)

	assert.Panics(t, func() {
		MustNew[counterState, counterEvent](counterState{}, nil)
	})
}

func TestConstructionEmitsNothing(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	assert.Equal(t, counterState{}, m.State())
	assert.Equal(t, 0, m.Observers())
	assert.NotEmpty(t, m.ID().String())
	assert.Equal(t, t.Name(), m.Name())
}

func TestObserverFanOut(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	var calls []recorded

	m.AddObserver(func(_ context.Context, c Change[counterState]) {
		calls = append(calls, recorded{"first", c})
	})
	m.AddObserver(func(_ context.Context, c Change[counterState]) {
		calls = append(calls, recorded{"second", c})
	})

	require.NoError(t, m.Transition(t.Context(), increment{By: 2}))

	want := Change[counterState]{
		Old:    counterState{Count: 0},
		HasOld: true,
		New:    counterState{Count: 2},
	}

	require.Len(t, calls, 2)
	assert.Equal(t, recorded{"first", want}, calls[0])
	assert.Equal(t, recorded{"second", want}, calls[1])
	assert.Equal(t, 2, m.State().Count)
}

func TestRemoveObserver(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	var first, second int

	h1 := m.AddObserver(func(context.Context, Change[counterState]) { first++ })
	m.AddObserver(func(context.Context, Change[counterState]) { second++ })

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))

	m.RemoveObserver(h1)
	m.RemoveObserver(h1)         // already gone
	m.RemoveObserver(Handle(99)) // never registered

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, m.Observers())
}

func TestRemovalDuringNotificationDoesNotSkip(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	var (
		order []string
		h2    Handle
	)

	m.AddObserver(func(context.Context, Change[counterState]) {
		order = append(order, "a")
		m.RemoveObserver(h2)
	})
	h2 = m.AddObserver(func(context.Context, Change[counterState]) {
		order = append(order, "b")
	})
	m.AddObserver(func(context.Context, Change[counterState]) {
		order = append(order, "c")
	})

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))
	assert.Equal(t, []string{"a", "b", "c"}, order)

	order = nil

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestReducerFailureIsAtomic(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	notified := 0

	m.AddObserver(func(context.Context, Change[counterState]) { notified++ })

	require.NoError(t, m.Transition(t.Context(), increment{By: 5}))

	err := m.Transition(t.Context(), explode{})
	require.Error(t, err)
	require.ErrorIs(t, err, errExplode)

	var transErr *TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, "explode", transErr.Event)
	assert.Equal(t, t.Name(), transErr.Machine)

	assert.Equal(t, 5, m.State().Count)
	assert.Equal(t, 1, notified)
}

func TestUnknownEvent(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	err := m.Transition(t.Context(), nil)
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, counterState{}, m.State())
}

func TestReentrantTransitionsAreSerialized(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	var seen []string

	m.AddObserver(func(ctx context.Context, c Change[counterState]) {
		seen = append(seen, "first:"+strconv.Itoa(c.Old.Count)+"->"+strconv.Itoa(c.New.Count))

		if c.New.Count == 1 {
			// Queued until every observer has seen 0 -> 1.
			require.NoError(t, m.Transition(ctx, increment{By: 10}))
		}
	})
	m.AddObserver(func(_ context.Context, c Change[counterState]) {
		seen = append(seen, "second:"+strconv.Itoa(c.Old.Count)+"->"+strconv.Itoa(c.New.Count))
	})

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))

	assert.Equal(t, []string{
		"first:0->1",
		"second:0->1",
		"first:1->11",
		"second:1->11",
	}, seen)
	assert.Equal(t, 11, m.State().Count)
}

func TestReentrantFailureReportedToOuterCall(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	m.AddObserver(func(ctx context.Context, c Change[counterState]) {
		if c.New.Count == 1 {
			_ = m.Transition(ctx, explode{})
			_ = m.Transition(ctx, increment{By: 1})
		}
	})

	err := m.Transition(t.Context(), increment{By: 1})
	require.ErrorIs(t, err, errExplode)

	// The event queued after the failing one is still applied.
	assert.Equal(t, 2, m.State().Count)
}

func TestReplay(t *testing.T) {
	t.Parallel()

	m := newCounter(t)
	require.NoError(t, m.Transition(t.Context(), increment{By: 3}))

	var got Change[counterState]

	m.Replay(t.Context(), func(_ context.Context, c Change[counterState]) { got = c })

	assert.False(t, got.HasOld)
	assert.Equal(t, counterState{}, got.Old)
	assert.Equal(t, 3, got.New.Count)
}

func TestSnapshotCopyIsolatesObservers(t *testing.T) {
	t.Parallel()

	m := newCounter(t, WithSnapshotCopy())

	m.AddObserver(func(_ context.Context, c Change[counterState]) {
		if len(c.New.Tags) > 0 {
			c.New.Tags[0] = "tampered"
		}
	})

	require.NoError(t, m.Transition(t.Context(), tag{Name: "original"}))

	assert.Equal(t, []string{"original"}, m.State().Tags)
}

func TestObserverContextCarriesLabels(t *testing.T) {
	t.Parallel()

	m := newCounter(t)

	var labels ObservabilityLabels

	m.AddObserver(func(ctx context.Context, _ Change[counterState]) {
		labels = GetObservabilityLabels(ctx)
	})

	require.NoError(t, m.Transition(t.Context(), increment{By: 1}))

	assert.Equal(t, ObservabilityLabels{
		MachineID:   m.ID().String(),
		MachineName: t.Name(),
		Event:       "increment",
	}, labels)
	assert.Equal(t, ObservabilityLabels{}, GetObservabilityLabels(t.Context()))
}

type namedEvent struct{}

func (namedEvent) EventName() string { return "custom_name" }

func TestEventName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "increment", EventName(increment{}))
	assert.Equal(t, "increment", EventName(&increment{}))
	assert.Equal(t, "custom_name", EventName(namedEvent{}))
	assert.Equal(t, "string", EventName("x"))
}

func TestPure(t *testing.T) {
	t.Parallel()

	reduce := Pure(func(s int, e int) int { return s + e })

	m, err := New(1, reduce)
	require.NoError(t, err)
	require.NoError(t, m.Transition(t.Context(), 41))

	assert.Equal(t, 42, m.State())
	assert.Equal(t, "unknown", m.Name())
}
