package research

import "fmt"

type slotState uint8

const (
	slotEmpty slotState = iota
	slotResolved
	slotUnavailable
)

// Slot is a tagged, single-assignment state cell. Each slot transitions from
// empty to exactly one of resolved(value) or unavailable(reason) per run; the
// orchestration graph guarantees a single writer, and a second write is a
// contract violation.
type Slot[T any] struct {
	value  T
	reason string
	state  slotState
}

// Resolve stores the slot's value.
func (s *Slot[T]) Resolve(value T) {
	if s.state != slotEmpty {
		panic(fmt.Sprintf("slot written twice (state %d)", s.state))
	}
	s.value = value
	s.state = slotResolved
}

// MarkUnavailable records that the producing stage could not deliver a value.
func (s *Slot[T]) MarkUnavailable(reason string) {
	if s.state != slotEmpty {
		panic(fmt.Sprintf("slot written twice (state %d)", s.state))
	}
	s.reason = reason
	s.state = slotUnavailable
}

// Value returns the stored value and whether the slot was resolved.
func (s *Slot[T]) Value() (T, bool) {
	return s.value, s.state == slotResolved
}

// Resolved reports whether the slot holds a value.
func (s *Slot[T]) Resolved() bool { return s.state == slotResolved }

// Unavailable reports whether the producing stage recorded a failure.
func (s *Slot[T]) Unavailable() bool { return s.state == slotUnavailable }

// Settled reports whether the slot has been written at all.
func (s *Slot[T]) Settled() bool { return s.state != slotEmpty }

// Reason returns the recorded unavailability reason, if any.
func (s *Slot[T]) Reason() string { return s.reason }
