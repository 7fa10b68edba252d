package order

import (
	"errors"
	"fmt"
)

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPreparing     Status = "preparing"
	StatusReady         Status = "ready"
	StatusServed        Status = "served"
	StatusPaid          Status = "paid"
	StatusChargedToRoom Status = "charged_to_room"
	StatusCancelled     Status = "cancelled"
)

// ErrInvalidTransition is returned by Transition for moves the lifecycle
// does not permit.
var ErrInvalidTransition = errors.New("invalid status transition")

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusServed,
		StatusPaid, StatusChargedToRoom, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusChargedToRoom, StatusCancelled:
		return true
	}
	return false
}

// kitchen reports whether s is one of the kitchen-side working states.
func (s Status) kitchen() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// Transition validates a move from one status to another. The kitchen
// selector may move freely among pending/preparing/ready, forward or
// backward; this looseness is intentional and matches how the status
// selector is operated in practice. Terminal states accept nothing.
func Transition(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to == StatusCancelled {
		return nil
	}
	switch {
	case from.kitchen() && to.kitchen():
		return nil
	case from == StatusReady && to == StatusServed:
		return nil
	case from == StatusServed && (to == StatusPaid || to == StatusChargedToRoom):
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
