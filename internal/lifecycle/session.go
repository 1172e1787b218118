package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/recurrence"
)

// Session is one scheduled occurrence of a group.
//
// Status holds only explicitly stored state. Callers that present a session use
// ComputeStatus to obtain the time-derived projection.
type Session struct {
	ID                 string
	GroupID            string
	CourseID           string
	TrainerID          string
	Ordinal            int
	Title              string
	Description        string
	LessonPlan         string
	ScheduledDate      time.Time
	StartTime          recurrence.Clock
	EndTime            recurrence.Clock
	Location           string
	Status             Status
	CancellationReason string
	ActualStart        *time.Time
	ActualEnd          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartsAt returns the scheduled start instant in loc.
func (s Session) StartsAt(loc *time.Location) time.Time {
	return s.StartTime.On(s.ScheduledDate, loc)
}

// EndsAt returns the scheduled end instant in loc.
func (s Session) EndsAt(loc *time.Location) time.Time {
	return s.EndTime.On(s.ScheduledDate, loc)
}

// DurationMinutes derives the scheduled length for display.
func (s Session) DurationMinutes() int {
	return int(s.EndTime - s.StartTime)
}

// ComputeStatus projects the status callers should see at now.
//
// A cancelled session stays cancelled. Every other session follows its scheduled
// window: before the start it is scheduled, inside the window in_progress, and from
// the scheduled end onward completed. Explicit start and end only change the stored
// status, which EnsureEditable and the transitions consult.
func ComputeStatus(s Session, now time.Time, loc *time.Location) Status {
	if s.Status == StatusCancelled {
		return StatusCancelled
	}
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case !now.Before(s.EndsAt(loc)):
		return StatusCompleted
	case !now.Before(s.StartsAt(loc)):
		return StatusInProgress
	default:
		return StatusScheduled
	}
}

func (s *Session) apply(ev Event, now time.Time) error {
	tr, ok := TransitionFor(s.Status, ev)
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, ev, s.Status)
	}
	s.Status = tr.To
	s.UpdatedAt = now
	return nil
}

// Start moves a scheduled session to in_progress and records the actual start.
func (s *Session) Start(now time.Time) error {
	if err := s.apply(EventStart, now); err != nil {
		return err
	}
	started := now
	s.ActualStart = &started
	return nil
}

// End moves an in-progress session to completed and records the actual end.
func (s *Session) End(now time.Time) error {
	if err := s.apply(EventEnd, now); err != nil {
		return err
	}
	ended := now
	s.ActualEnd = &ended
	return nil
}

// Cancel marks the session cancelled with the supplied reason.
func (s *Session) Cancel(reason string, now time.Time) error {
	if err := s.apply(EventCancel, now); err != nil {
		return err
	}
	s.CancellationReason = strings.TrimSpace(reason)
	return nil
}

// EnsureEditable rejects edits to sessions whose stored status is completed.
func (s Session) EnsureEditable() error {
	if s.Status == StatusCompleted {
		return ErrImmutableRecord
	}
	return nil
}

// ContentUpdate carries optional replacements for the editable session fields.
type ContentUpdate struct {
	Title       *string
	Description *string
	LessonPlan  *string
	Location    *string
}

// Empty reports whether the update changes nothing.
func (u ContentUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.LessonPlan == nil && u.Location == nil
}

// ApplyContent edits the descriptive fields of the session.
func (s *Session) ApplyContent(update ContentUpdate, now time.Time) error {
	if err := s.EnsureEditable(); err != nil {
		return err
	}
	if update.Title != nil {
		s.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		s.Description = *update.Description
	}
	if update.LessonPlan != nil {
		s.LessonPlan = *update.LessonPlan
	}
	if update.Location != nil {
		s.Location = strings.TrimSpace(*update.Location)
	}
	s.UpdatedAt = now
	return nil
}
