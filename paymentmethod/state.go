// Package paymentmethod models the details screen of a saved payment method, from which
// the method can be made the default one or removed.
package paymentmethod

import (
	"github.com/amp-labs/amp-state/effect"
	"github.com/amp-labs/amp-state/statemachine"
)

// DirectDebitTitle is shown for methods that are not cards.
const DirectDebitTitle = "Direct debit"

// PaymentMethod is a saved payment method. CardTypeName is empty for direct debit.
type PaymentMethod struct {
	ID           string
	CardTypeName string
	IsDefault    bool
}

// User is the account as returned by the backend after an update.
type User struct {
	ID              string
	DefaultMethodID string
}

// UpdateRequest asks the backend to make a method the default one.
type UpdateRequest struct {
	DefaultMethodID string
}

// RemoveRequest asks the backend to remove a method.
type RemoveRequest struct {
	MethodID string
}

// Completed is the outcome of the screen, carrying the updated user.
type Completed struct {
	User User
}

// ViewState is what the header of the screen shows.
type ViewState struct {
	Title            string
	IsDefaultPayment bool
}

// Event is the closed set of events the screen reacts to.
type Event interface {
	isEvent()
}

type (
	// TappedMakeDefault is sent when the user asks to make the method the default.
	TappedMakeDefault struct{}
	// MadeDefault reports the result of UpdateRequest. User is nil when it failed.
	MadeDefault struct{ User *User }
	// TappedRemove is sent once the user has confirmed the removal.
	TappedRemove struct{}
	// DidRemove reports the result of RemoveRequest. User is nil when it failed.
	DidRemove struct{ User *User }
	// ProducedOutput acknowledges Produce.
	ProducedOutput struct{}
)

func (TappedMakeDefault) isEvent() {}
func (MadeDefault) isEvent()       {}
func (TappedRemove) isEvent()      {}
func (DidRemove) isEvent()         {}
func (ProducedOutput) isEvent()    {}

// State of the payment method screen.
type State struct {
	method          PaymentMethod
	isMakingDefault bool
	isRemoving      bool
	output          effect.Slot[Completed]
}

// NewState returns the screen for method with nothing in flight.
func NewState(method PaymentMethod) State {
	return State{method: method}
}

// NewMachine returns a machine holding NewState(method).
func NewMachine(method PaymentMethod, opts ...statemachine.Option) (*statemachine.Machine[State, Event], error) {
	opts = append([]statemachine.Option{statemachine.WithName("payment_method")}, opts...)

	return statemachine.New(NewState(method), Reduce, opts...)
}

// Reduce returns the state after event.
func Reduce(state State, event Event) (State, error) {
	next := state

	switch ev := event.(type) {
	case TappedMakeDefault:
		next.isMakingDefault = true
	case MadeDefault:
		next.isMakingDefault = false
		next.output = state.completeWith(ev.User)
	case TappedRemove:
		next.isRemoving = true
	case DidRemove:
		next.isRemoving = false
		next.output = state.completeWith(ev.User)
	case ProducedOutput:
		next.output = state.output.Handled()
	default:
		return state, statemachine.UnknownEvent(event)
	}

	return next, nil
}

// completeWith issues the outcome for user. Without a user, any pending outcome is
// dropped and none is produced.
func (s State) completeWith(user *User) effect.Slot[Completed] {
	if user == nil {
		return s.output.Handled()
	}

	return s.output.Issue(Completed{User: *user})
}

// ViewState is the card type name, or DirectDebitTitle, and whether the method is the
// default one.
func (s State) ViewState() ViewState {
	title := s.method.CardTypeName
	if title == "" {
		title = DirectDebitTitle
	}

	return ViewState{
		Title:            title,
		IsDefaultPayment: s.method.IsDefault,
	}
}

// PaymentSection returns the method being shown.
func (s State) PaymentSection() PaymentMethod {
	return s.method
}

// IsEditActionsAvailable reports whether the method can be made default or removed.
// The default method can do neither.
func (s State) IsEditActionsAvailable() bool {
	return !s.method.IsDefault
}

// IsLoadingVisible reports whether a make-default request is in flight.
func (s State) IsLoadingVisible() bool {
	return s.isMakingDefault
}

// MakeDefault returns the request the driver should send, if any.
func (s State) MakeDefault() (UpdateRequest, bool) {
	if !s.isMakingDefault {
		return UpdateRequest{}, false
	}

	return UpdateRequest{DefaultMethodID: s.method.ID}, true
}

// RemoveAfterConfirmation returns the removal the driver should send, if any.
func (s State) RemoveAfterConfirmation() (RemoveRequest, bool) {
	if !s.isRemoving {
		return RemoveRequest{}, false
	}

	return RemoveRequest{MethodID: s.method.ID}, true
}

// Produce returns the outcome of the screen once there is one.
func (s State) Produce() (Completed, bool) {
	return s.output.Pending()
}

// OutputTicket identifies the pending outcome, or is zero when there is none.
func (s State) OutputTicket() effect.Ticket {
	return s.output.Ticket()
}
