// Package phoneverification models verifying a phone number with a code sent by SMS.
//
// The whole flow is the Reduce table over State. A driver feeds it user input, timer
// ticks and the results of the effects it performed, and reads the queries on State to
// decide what to render and which effect to run next.
package phoneverification

import (
	"unicode/utf8"

	"github.com/amp-labs/amp-state/effect"
	"github.com/amp-labs/amp-state/statemachine"
)

// State is an immutable snapshot of the flow. Copies are independent.
type State struct {
	rules      *rules
	phone      string
	code       string
	inProgress bool
	countdown  int
	effect     effect.Slot[Effect]
}

// NewState returns the initial state for phone with the default config. Sending the
// first SMS is already pending.
func NewState(phone string) State {
	return newState(defaultRules, phone)
}

// NewState returns the initial state for phone using this config.
func (c Config) NewState(phone string) (State, error) {
	r, err := c.compile()
	if err != nil {
		return State{}, err
	}

	return newState(r, phone), nil
}

func newState(r *rules, phone string) State {
	return State{
		rules:      r,
		phone:      phone,
		inProgress: true,
		countdown:  r.waitSeconds,
		effect:     effect.Slot[Effect]{}.Issue(SendSms{}),
	}
}

// NewMachine returns a machine holding the initial state for phone.
func NewMachine(phone string, cfg Config, opts ...statemachine.Option) (*statemachine.Machine[State, Event], error) {
	initial, err := cfg.NewState(phone)
	if err != nil {
		return nil, err
	}

	opts = append([]statemachine.Option{statemachine.WithName("phone_verification")}, opts...)

	return statemachine.New(initial, Reduce, opts...)
}

func (s State) config() *rules {
	if s.rules == nil {
		return defaultRules
	}

	return s.rules
}

// Reduce returns the state after event. Results tagged with a ticket other than that of
// the latest issued effect are stale and leave the state unchanged. The only error is
// statemachine.ErrUnknownEvent, for events outside the Event set.
func Reduce(state State, event Event) (State, error) {
	r := state.config()
	next := state

	switch ev := event.(type) {
	case SmsSent:
		if !state.effect.Accepts(ev.Ticket) {
			return state, nil
		}

		next.inProgress = false
	case SmsFailed:
		if !state.effect.Accepts(ev.Ticket) {
			return state, nil
		}

		next.inProgress = false
		next.countdown = 0
		next.effect = state.effect.Issue(ShowError{Message: r.texts.SmsFailed})
	case CodeEntered:
		next = state.checkCode(ev.Text)
	case CodeVerified:
		if !state.effect.Accepts(ev.Ticket) {
			return state, nil
		}

		next.inProgress = false
		next.effect = state.effect.Issue(Close{})
	case CodeRejected:
		if !state.effect.Accepts(ev.Ticket) {
			return state, nil
		}

		next.inProgress = false
		next.effect = state.effect.Issue(ShowError{Message: r.texts.CodeRejected})
	case SmsReceived:
		if code := r.codePattern.FindString(ev.Message); code != "" {
			next = state.checkCode(code)
		}
	case SecondPassed:
		next.countdown = max(0, state.countdown-1)
	case ResendTapped:
		next.inProgress = true
		next.countdown = r.waitSeconds
		next.effect = state.effect.Issue(SendSms{})
	case EffectHandled:
		if ev.Ticket.IsZero() || ev.Ticket == state.effect.Ticket() {
			next.effect = state.effect.Handled()
		}
	default:
		return state, statemachine.UnknownEvent(event)
	}

	return next, nil
}

// checkCode stores an incomplete candidate as is. A complete one is cut to the code
// length and sent for verification.
func (s State) checkCode(candidate string) State {
	r := s.config()

	if utf8.RuneCountInString(candidate) < r.codeLength {
		s.code = candidate

		return s
	}

	code := string([]rune(candidate)[:r.codeLength])

	s.code = code
	s.inProgress = true
	s.effect = s.effect.Issue(CheckCode{Phone: s.phone, Code: code})

	return s
}

// Phone is the number being verified.
func (s State) Phone() string {
	return s.phone
}

// Code is the code entered or received so far.
func (s State) Code() string {
	return s.code
}

// Countdown is the number of seconds left before resending is allowed.
func (s State) Countdown() int {
	return s.countdown
}

// ShowProgress reports whether an SMS or a code check is in flight.
func (s State) ShowProgress() bool {
	return s.inProgress
}

// ResendEnabled reports whether the countdown has run out.
func (s State) ResendEnabled() bool {
	return s.countdown == 0
}

// ResendLabel is the resend button text, prefixed with the remaining seconds while
// the countdown is running.
func (s State) ResendLabel() string {
	r := s.config()

	if s.countdown > 0 {
		return r.printer.Sprintf("(%d) %s", s.countdown, r.texts.Resend)
	}

	return r.texts.Resend
}

// Effect returns the pending effect, if any.
func (s State) Effect() (Effect, bool) {
	return s.effect.Pending()
}

// EffectTicket returns the ticket of the pending effect, or zero when none is pending.
// Drivers tag result events with it.
func (s State) EffectTicket() effect.Ticket {
	return s.effect.Ticket()
}
