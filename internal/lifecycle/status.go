package lifecycle

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	// ErrInvalidTransition is returned when an explicit transition is not allowed from the stored status.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	// ErrImmutableRecord is returned when a completed session is edited.
	ErrImmutableRecord = errors.New("lifecycle: session is completed and can no longer be edited")
	// ErrInvalidStatus is returned when parsing an unknown status value.
	ErrInvalidStatus = errors.New("lifecycle: invalid status")
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no explicit transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// Event names an explicit lifecycle action.
type Event string

const (
	EventStart  Event = "start"
	EventEnd    Event = "end"
	EventCancel Event = "cancel"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From  Status
	To    Status
	Event Event
}

var transitionsTable = []Transition{
	{From: StatusScheduled, To: StatusInProgress, Event: EventStart},
	{From: StatusInProgress, To: StatusCompleted, Event: EventEnd},

	{From: StatusScheduled, To: StatusCancelled, Event: EventCancel},
	{From: StatusInProgress, To: StatusCancelled, Event: EventCancel},
}

// TransitionFor returns the allowed transition for a given status and event.
func TransitionFor(from Status, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Reachable lists the statuses reachable from s through a single explicit transition.
func Reachable(from Status) []Status {
	var out []Status
	for _, tr := range transitionsTable {
		if tr.From == from {
			out = append(out, tr.To)
		}
	}
	return out
}
