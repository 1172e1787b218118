package persistence

import (
	"context"
	"time"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
)

// GroupFilter narrows group queries. Zero values match everything.
type GroupFilter struct {
	TrainerID string
	CourseID  string
	Status    GroupStatus
}

// GroupRepository stores groups and owns their session counter.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group Group) error
	UpdateGroup(ctx context.Context, group Group) error
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]Group, error)
	// AppendSession stores session and increments the owning group's counter in one
	// atomic step, provided the counter still equals expectedCount. Otherwise it returns
	// ErrConcurrentUpdate and stores nothing.
	AppendSession(ctx context.Context, session lifecycle.Session, expectedCount int) error
}

// SessionFilter narrows session queries. Date bounds are inclusive and compare calendar dates.
type SessionFilter struct {
	GroupID   string
	TrainerID string
	From      *time.Time
	To        *time.Time
}

// SessionRepository stores scheduled sessions.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (lifecycle.Session, error)
	// UpdateSession replaces the session provided its stored status still equals
	// expected. Otherwise it returns ErrConcurrentUpdate and stores nothing.
	UpdateSession(ctx context.Context, session lifecycle.Session, expected lifecycle.Status) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]lifecycle.Session, error)
	// DeleteSession removes the session together with its attendance record and
	// evaluation, and decrements the group's counter without going below zero.
	DeleteSession(ctx context.Context, id string) error
}

// AttendanceFilter narrows attendance record queries.
type AttendanceFilter struct {
	CourseID string
	From     *time.Time
	To       *time.Time
}

// AttendanceRepository stores attendance records keyed by scope.
type AttendanceRepository interface {
	// UpsertAttendance loads the record for scope, creating it with newID when absent,
	// applies mutate and persists the result atomically.
	UpsertAttendance(ctx context.Context, scope attendance.Scope, newID string, now time.Time, mutate func(*attendance.Record) error) (*attendance.Record, error)
	GetAttendance(ctx context.Context, scope attendance.Scope) (*attendance.Record, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]*attendance.Record, error)
}

// EnrollmentFilter narrows enrollment queries.
type EnrollmentFilter struct {
	CourseID  string
	GroupID   string
	StudentID string
}

// EnrollmentRepository stores group rosters.
type EnrollmentRepository interface {
	CreateEnrollment(ctx context.Context, enrollment Enrollment) error
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
}

// EvaluationRepository stores per-session evaluations.
type EvaluationRepository interface {
	UpsertEvaluation(ctx context.Context, evaluation Evaluation) error
	GetEvaluation(ctx context.Context, sessionID string) (Evaluation, error)
}

// Store bundles every repository of one storage backend.
type Store interface {
	GroupRepository
	SessionRepository
	AttendanceRepository
	EnrollmentRepository
	EvaluationRepository
	Close() error
}

// DateKey formats the calendar date of t as stored by every backend.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
