package persistence

import (
	"time"

	"github.com/example/trainingcenter/internal/recurrence"
)

// GroupStatus is the stored state of a group.
type GroupStatus string

const (
	GroupActive    GroupStatus = "active"
	GroupCompleted GroupStatus = "completed"
	GroupArchived  GroupStatus = "archived"
	GroupCancelled GroupStatus = "cancelled"
)

// Valid reports whether s is a known group status.
func (s GroupStatus) Valid() bool {
	switch s {
	case GroupActive, GroupCompleted, GroupArchived, GroupCancelled:
		return true
	}
	return false
}

// Group is a long-lived cohort of students following one weekly pattern.
type Group struct {
	ID                   string
	CourseID             string
	TrainerID            string
	Name                 string
	WeeklyPattern        []recurrence.Entry
	StartDate            time.Time
	EndDate              time.Time
	Status               GroupStatus
	SessionsCreatedCount int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EnrollmentStatus is the stored state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// Valid reports whether s is a known enrollment status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentCompleted, EnrollmentDropped:
		return true
	}
	return false
}

// Enrollment places a student in a group of a course.
type Enrollment struct {
	ID         string
	CourseID   string
	GroupID    string
	StudentID  string
	Status     EnrollmentStatus
	EnrolledAt time.Time
	UpdatedAt  time.Time
}

// Evaluation is the trainer's assessment attached to a session.
type Evaluation struct {
	SessionID string
	TrainerID string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CloneGroup returns a copy of g that shares no slices with it.
func CloneGroup(g Group) Group {
	if g.WeeklyPattern != nil {
		pattern := make([]recurrence.Entry, len(g.WeeklyPattern))
		copy(pattern, g.WeeklyPattern)
		g.WeeklyPattern = pattern
	}
	return g
}
