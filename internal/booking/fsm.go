// Package booking implements the booking request lifecycle.
package booking

import (
	"fmt"

	"gigbook/internal/domain"
	"gigbook/internal/models"
)

// Action is an admin operation on a booking.
type Action int

const (
	ActionApprove Action = iota + 1
	ActionReject
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction maps the wire name of a decision to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "approve":
		return ActionApprove, nil
	case "reject":
		return ActionReject, nil
	case "remove":
		return ActionRemove, nil
	default:
		return 0, domain.Validation("action", "unknown action %q", s)
	}
}

// Target returns the status an action moves a booking to.
func (a Action) Target() models.BookingStatus {
	switch a {
	case ActionApprove:
		return models.StatusApproved
	case ActionReject:
		return models.StatusRejected
	case ActionRemove:
		return models.StatusRemoved
	default:
		return ""
	}
}

// FSM holds the allowed booking status transitions.
type FSM struct {
	transitions map[models.BookingStatus][]models.BookingStatus
}

// NewFSM creates the booking state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.BookingStatus][]models.BookingStatus{
			models.StatusPending:  {models.StatusApproved, models.StatusRejected},
			models.StatusApproved: {models.StatusRemoved},
			models.StatusRejected: {},
			models.StatusRemoved:  {},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to models.BookingStatus) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the status after applying a to a booking in from, or a conflict.
func (f *FSM) Next(from models.BookingStatus, a Action) (models.BookingStatus, error) {
	to := a.Target()
	if to == "" {
		return "", domain.Validation("action", "unknown action %s", a)
	}
	if !f.CanTransition(from, to) {
		return "", domain.Conflict("cannot %s booking with status %s", a, from)
	}
	return to, nil
}
