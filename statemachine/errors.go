package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned by reducers that receive an event outside their closed set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNilReducer indicates that a machine was constructed without a reducer.
	ErrNilReducer = errors.New("reducer is required")
)

// TransitionError wraps a reducer failure with the machine and event it happened on.
type TransitionError struct {
	Machine string
	Event   string
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("machine %s: event %s: %v", e.Machine, e.Event, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapTransitionError wraps an error with machine and event context.
func WrapTransitionError(machine, event string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		Machine: machine,
		Event:   event,
		Err:     err,
	}
}

// UnknownEvent is a helper for the default branch of a reducer's type switch.
func UnknownEvent(event any) error {
	return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
}
