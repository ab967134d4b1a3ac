// Package effect provides the one-shot effect slot used by reducer-driven state machines.
//
// A Slot holds at most one pending effect. Issuing a new effect overwrites whatever was
// pending, and acknowledging it (Handled) empties the slot. Every issued effect gets a
// Ticket from a monotonically increasing sequence, so drivers can tell a fresh request
// from one they already started, and reducers can recognise results that answer an
// effect which has since been superseded.
package effect

import "fmt"

// Ticket identifies one issued effect. The zero Ticket means "untagged".
type Ticket uint64

// IsZero reports whether the ticket is untagged.
func (t Ticket) IsZero() bool {
	return t == 0
}

// Slot is a value type; every method returns a new Slot and leaves the receiver untouched.
type Slot[T any] struct {
	pending T
	has     bool
	ticket  Ticket
	last    Ticket
}

// Issue returns a slot holding eff as its pending effect, with a fresh ticket.
func (s Slot[T]) Issue(eff T) Slot[T] {
	next := s.last + 1

	return Slot[T]{
		pending: eff,
		has:     true,
		ticket:  next,
		last:    next,
	}
}

// Handled returns an empty slot. The sequence is preserved so later tickets stay unique.
// Calling Handled on an empty slot yields a slot equal to the receiver.
func (s Slot[T]) Handled() Slot[T] {
	return Slot[T]{last: s.last}
}

// Pending returns the pending effect, if any.
func (s Slot[T]) Pending() (T, bool) {
	return s.pending, s.has
}

// Empty reports whether no effect is pending.
func (s Slot[T]) Empty() bool {
	return !s.has
}

// Ticket returns the ticket of the pending effect, or zero if the slot is empty.
func (s Slot[T]) Ticket() Ticket {
	return s.ticket
}

// Last returns the ticket of the most recently issued effect, pending or not.
func (s Slot[T]) Last() Ticket {
	return s.last
}

// Accepts reports whether a result tagged with t should be applied. Untagged results are
// always accepted; tagged results only when they answer the latest issued effect.
func (s Slot[T]) Accepts(t Ticket) bool {
	return t.IsZero() || t == s.last
}

func (s Slot[T]) String() string {
	if !s.has {
		return "None"
	}

	return fmt.Sprintf("Some(%v)#%d", s.pending, s.ticket)
}
