package phoneverification

import (
	"context"
	"math/rand/v2"
	"testing"
	"unicode/utf8"

	"github.com/amp-labs/amp-state/effect"
	"github.com/amp-labs/amp-state/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "+00000000000"

func apply(t *testing.T, state State, events ...Event) State {
	t.Helper()

	for _, ev := range events {
		var err error

		state, err = Reduce(state, ev)
		require.NoError(t, err)
	}

	return state
}

func repeatEvent(ev Event, n int) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = ev
	}

	return out
}

func requireEffect(t *testing.T, state State, want Effect) {
	t.Helper()

	got, ok := state.Effect()
	require.True(t, ok, "expected a pending effect")
	assert.Equal(t, want, got)
}

func requireNoEffect(t *testing.T, state State) {
	t.Helper()

	got, ok := state.Effect()
	assert.False(t, ok, "unexpected pending effect %v", got)
}

func smsSent(t *testing.T) State {
	t.Helper()

	return apply(t, NewState(testPhone), EffectHandled{}, SmsSent{})
}

func TestConstruction(t *testing.T) {
	t.Parallel()

	state := NewState(testPhone)

	requireEffect(t, state, SendSms{})
	assert.True(t, state.ShowProgress())
	assert.Equal(t, testPhone, state.Phone())
	assert.Empty(t, state.Code())
	assert.Equal(t, 10, state.Countdown())
	assert.Equal(t, effect.Ticket(1), state.EffectTicket())
}

func TestSmsSent(t *testing.T) {
	t.Parallel()

	state := smsSent(t)

	assert.False(t, state.ShowProgress())
	assert.False(t, state.ResendEnabled())
	requireNoEffect(t, state)
}

func TestCodeReceived(t *testing.T) {
	t.Parallel()

	received := apply(t, smsSent(t), SmsReceived{Message: "Your code is 1234"})

	assert.Equal(t, "1234", received.Code())
	requireEffect(t, received, CheckCode{Phone: testPhone, Code: "1234"})
	assert.True(t, received.ShowProgress())

	t.Run("verified", func(t *testing.T) {
		t.Parallel()

		state := apply(t, received, CodeVerified{})

		assert.False(t, state.ShowProgress())
		requireEffect(t, state, Close{})
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		state := apply(t, received, CodeRejected{})

		assert.False(t, state.ShowProgress())
		requireEffect(t, state, ShowError{Message: "Code rejected"})
	})
}

func TestUnrelatedSmsReceived(t *testing.T) {
	t.Parallel()

	before := smsSent(t)
	state := apply(t, before, SmsReceived{Message: "Welcome to #AppBuilders19"})

	assert.Empty(t, state.Code())
	requireNoEffect(t, state)
	assert.Equal(t, before, state)
}

func TestCodeEntered(t *testing.T) {
	t.Parallel()

	partial := apply(t, smsSent(t), CodeEntered{Text: "1"})

	assert.Equal(t, "1", partial.Code())
	requireNoEffect(t, partial)
	assert.False(t, partial.ShowProgress())

	complete := apply(t, partial, CodeEntered{Text: "1234"})

	assert.Equal(t, "1234", complete.Code())
	requireEffect(t, complete, CheckCode{Phone: testPhone, Code: "1234"})
	assert.True(t, complete.ShowProgress())

	t.Run("verified", func(t *testing.T) {
		t.Parallel()

		state := apply(t, complete, CodeVerified{})

		assert.False(t, state.ShowProgress())
		requireEffect(t, state, Close{})
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		state := apply(t, complete, CodeRejected{})

		assert.False(t, state.ShowProgress())
		requireEffect(t, state, ShowError{Message: "Code rejected"})
	})
}

func TestCodeEnteredTruncates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		code  string
		check bool
	}{
		{name: "empty", input: "", code: ""},
		{name: "three digits", input: "123", code: "123"},
		{name: "exact", input: "1234", code: "1234", check: true},
		{name: "too long", input: "123456", code: "1234", check: true},
		{name: "multibyte", input: "ąčęėįš", code: "ąčęė", check: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := apply(t, smsSent(t), CodeEntered{Text: tt.input})

			assert.Equal(t, tt.code, state.Code())

			if tt.check {
				requireEffect(t, state, CheckCode{Phone: testPhone, Code: tt.code})
			} else {
				requireNoEffect(t, state)
			}
		})
	}
}

func TestCountdown(t *testing.T) {
	t.Parallel()

	state := apply(t, smsSent(t), repeatEvent(SecondPassed{}, 7)...)

	assert.False(t, state.ResendEnabled())
	assert.Contains(t, state.ResendLabel(), "(3)")
	assert.Equal(t, "(3) Resend text", state.ResendLabel())

	state = apply(t, state, repeatEvent(SecondPassed{}, 4)...)

	assert.True(t, state.ResendEnabled())
	assert.Equal(t, "Resend text", state.ResendLabel())
	assert.Equal(t, 0, state.Countdown())

	state = apply(t, state, ResendTapped{})

	requireEffect(t, state, SendSms{})
	assert.True(t, state.ShowProgress())
	assert.Equal(t, 10, state.Countdown())
}

func TestSmsFailed(t *testing.T) {
	t.Parallel()

	state := apply(t, NewState(testPhone), EffectHandled{}, SmsFailed{})

	assert.False(t, state.ShowProgress())
	requireEffect(t, state, ShowError{Message: "Could not send SMS"})

	state = apply(t, state, EffectHandled{})

	assert.True(t, state.ResendEnabled())

	state = apply(t, state, ResendTapped{})

	requireEffect(t, state, SendSms{})
	assert.True(t, state.ShowProgress())
}

func TestEffectHandledIsIdempotent(t *testing.T) {
	t.Parallel()

	state := smsSent(t)

	assert.Equal(t, state, apply(t, state, EffectHandled{}))
	assert.Equal(t, state, apply(t, state, EffectHandled{Ticket: 1}))
}

func TestEffectHandledWithTicket(t *testing.T) {
	t.Parallel()

	state := apply(t, NewState(testPhone), EffectHandled{}, SmsSent{}, CodeEntered{Text: "1234"})
	ticket := state.EffectTicket()

	// Acknowledging the first SendSms must not drop the pending CheckCode.
	stale := apply(t, state, EffectHandled{Ticket: 1})
	requireEffect(t, stale, CheckCode{Phone: testPhone, Code: "1234"})

	handled := apply(t, state, EffectHandled{Ticket: ticket})
	requireNoEffect(t, handled)
	assert.Equal(t, ticket, handled.effect.Last())
}

func TestStaleResultsAreIgnored(t *testing.T) {
	t.Parallel()

	sent := NewState(testPhone)
	sendTicket := sent.EffectTicket()

	first := apply(t, sent, EffectHandled{}, SmsSent{Ticket: sendTicket}, CodeEntered{Text: "1111"})
	firstTicket := first.EffectTicket()

	second := apply(t, first, CodeEntered{Text: "2222"})
	secondTicket := second.EffectTicket()

	require.Greater(t, secondTicket, firstTicket)

	tests := []struct {
		name  string
		event Event
	}{
		{name: "late sms failure", event: SmsFailed{Ticket: sendTicket}},
		{name: "late sms sent", event: SmsSent{Ticket: sendTicket}},
		{name: "superseded verification", event: CodeVerified{Ticket: firstTicket}},
		{name: "superseded rejection", event: CodeRejected{Ticket: firstTicket}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, second, apply(t, second, tt.event))
		})
	}

	t.Run("current verification", func(t *testing.T) {
		t.Parallel()

		state := apply(t, second, CodeVerified{Ticket: secondTicket})

		requireEffect(t, state, Close{})
		assert.False(t, state.ShowProgress())
	})

	t.Run("untagged result", func(t *testing.T) {
		t.Parallel()

		state := apply(t, second, CodeRejected{})

		requireEffect(t, state, ShowError{Message: "Code rejected"})
	})
}

type unknownEvent struct{}

func (unknownEvent) isEvent() {}

func TestUnknownEvent(t *testing.T) {
	t.Parallel()

	state := NewState(testPhone)

	next, err := Reduce(state, unknownEvent{})
	require.ErrorIs(t, err, statemachine.ErrUnknownEvent)
	assert.Equal(t, state, next)

	_, err = Reduce(state, nil)
	require.ErrorIs(t, err, statemachine.ErrUnknownEvent)
}

func randomEvent(rng *rand.Rand, state State) Event {
	messages := []string{"Your code is 1234", "Welcome to #AppBuilders19", "", "code: 98765"}
	codes := []string{"", "1", "12", "123", "1234", "12345678"}

	switch rng.IntN(9) {
	case 0:
		return SmsSent{Ticket: effect.Ticket(rng.IntN(3)) * state.EffectTicket()}
	case 1:
		return SmsFailed{}
	case 2:
		return CodeEntered{Text: codes[rng.IntN(len(codes))]}
	case 3:
		return CodeVerified{Ticket: state.EffectTicket()}
	case 4:
		return CodeRejected{}
	case 5:
		return SmsReceived{Message: messages[rng.IntN(len(messages))]}
	case 6:
		return ResendTapped{}
	case 7:
		return EffectHandled{}
	default:
		return SecondPassed{}
	}
}

func TestReachableStateInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2)) //nolint:gosec

	for walk := range 50 {
		state := NewState(testPhone)

		for step := range 200 {
			ev := randomEvent(rng, state)

			next, err := Reduce(state, ev)
			require.NoError(t, err)

			again, err := Reduce(state, ev)
			require.NoError(t, err)
			require.Equal(t, next, again, "walk %d step %d: reduce is not deterministic for %#v", walk, step, ev)

			require.GreaterOrEqual(t, next.Countdown(), 0)
			require.LessOrEqual(t, utf8.RuneCountInString(next.Code()), 4)

			if _, ok := ev.(SecondPassed); ok {
				require.LessOrEqual(t, next.Countdown(), state.Countdown())
			}

			if utf8.RuneCountInString(next.Code()) == 4 && next.Code() != state.Code() {
				requireEffect(t, next, CheckCode{Phone: testPhone, Code: next.Code()})
			}

			require.GreaterOrEqual(t, next.effect.Last(), state.effect.Last())

			state = next
		}
	}
}

func TestNewMachine(t *testing.T) {
	t.Parallel()

	m, err := NewMachine(testPhone, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "phone_verification", m.Name())
	requireEffect(t, m.State(), SendSms{})

	require.NoError(t, m.Transition(t.Context(), EffectHandled{}))
	require.NoError(t, m.Transition(t.Context(), SmsSent{}))
	require.NoError(t, m.Transition(t.Context(), SmsReceived{Message: "Your code is 1234"}))

	assert.Equal(t, "1234", m.State().Code())

	_, err = NewMachine(testPhone, Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSnapshotCopyKeepsUnexportedFields(t *testing.T) {
	t.Parallel()

	m, err := NewMachine(testPhone, DefaultConfig(), statemachine.WithSnapshotCopy())
	require.NoError(t, err)

	var seen []statemachine.Change[State]

	m.AddObserver(func(_ context.Context, c statemachine.Change[State]) {
		seen = append(seen, c)
	})

	require.NoError(t, m.Transition(t.Context(), CodeEntered{Text: "12"}))
	require.Len(t, seen, 1)

	got := seen[0].New

	assert.Equal(t, testPhone, got.Phone())
	assert.Equal(t, "12", got.Code())
	assert.Equal(t, 10, got.Countdown())
	assert.True(t, got.ShowProgress())
	assert.Equal(t, "(10) Resend text", got.ResendLabel())
	requireEffect(t, got, SendSms{})
	assert.Equal(t, m.State().EffectTicket(), got.EffectTicket())
}

func TestZeroStateUsesDefaults(t *testing.T) {
	t.Parallel()

	state := apply(t, State{}, ResendTapped{})

	assert.Equal(t, 10, state.Countdown())
	assert.Equal(t, "(10) Resend text", state.ResendLabel())
}
