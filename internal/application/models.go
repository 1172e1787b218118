package application

import (
	"log/slog"
	"time"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/stats"
)

// Principal represents the trainer invoking a service method.
type Principal struct {
	TrainerID string
	IsAdmin   bool
}

func (p Principal) authenticated() bool {
	return p.TrainerID != ""
}

// owns reports whether the principal may act on a resource of trainerID.
func (p Principal) owns(trainerID string) bool {
	return p.IsAdmin || (p.TrainerID != "" && p.TrainerID == trainerID)
}

// CacheInvalidator is notified after writes that change attendance rollups.
type CacheInvalidator interface {
	Invalidate()
}

// ServiceConfig carries the collaborators shared by every service.
type ServiceConfig struct {
	IDGenerator func() string
	Now         func() time.Time
	// Location is the operational time zone for calendar dates and session windows.
	Location *time.Location
	Logger   *slog.Logger
	// Invalidator is told when cached rollups go stale. Optional.
	Invalidator CacheInvalidator
	// CreateRetries bounds the retries of a session creation that lost the counter race.
	CreateRetries int
	Policy        stats.Policy
	DashboardTTL  time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.IDGenerator == nil {
		c.IDGenerator = func() string { return "" }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	c.Logger = defaultLogger(c.Logger)
	if c.CreateRetries < 0 {
		c.CreateRetries = 0
	}
	if c.Policy.LowAttendanceThreshold <= 0 {
		c.Policy = stats.DefaultPolicy()
	}
	return c
}

func (c ServiceConfig) invalidate() {
	if c.Invalidator != nil {
		c.Invalidator.Invalidate()
	}
}

// PatternEntryInput is one weekly pattern row as supplied by callers.
type PatternEntryInput struct {
	Weekday   string
	StartTime string
	EndTime   string
	Location  string
}

// CreateGroupParams wraps the data required to provision a group.
type CreateGroupParams struct {
	Principal Principal
	// TrainerID lets administrators provision a group for another trainer.
	TrainerID     string
	CourseID      string
	Name          string
	WeeklyPattern []PatternEntryInput
	StartDate     string
	EndDate       string
}

// UpdateGroupStatusParams wraps a group status change.
type UpdateGroupStatusParams struct {
	Principal Principal
	GroupID   string
	Status    string
}

// EnrollStudentParams wraps the data required to add a student to a group roster.
type EnrollStudentParams struct {
	Principal Principal
	GroupID   string
	StudentID string
}

// SessionView is a session as presented to callers, with its time-derived status.
type SessionView struct {
	lifecycle.Session
	DerivedStatus lifecycle.Status
}

// CreateSessionParams wraps the data required to schedule the next session of a group.
//
// ScheduledDate, StartTime and EndTime override the weekly pattern when ScheduledDate is set.
type CreateSessionParams struct {
	Principal     Principal
	GroupID       string
	Title         string
	Description   string
	LessonPlan    string
	ScheduledDate string
	StartTime     string
	EndTime       string
	Location      string
}

// ListSessionsParams wraps session list filters. Dates are inclusive YYYY-MM-DD values.
type ListSessionsParams struct {
	Principal Principal
	GroupID   string
	Status    string
	StartDate string
	EndDate   string
}

// UpdateSessionParams wraps a content edit of a session.
type UpdateSessionParams struct {
	Principal Principal
	SessionID string
	Update    lifecycle.ContentUpdate
}

// DeleteSessionParams wraps a soft or permanent session removal.
type DeleteSessionParams struct {
	Principal Principal
	SessionID string
	Permanent bool
	Reason    string
}

// EvaluateSessionParams wraps a trainer evaluation of a session.
type EvaluateSessionParams struct {
	Principal Principal
	SessionID string
	Rating    int
	Comment   string
}

// AttendanceMark is one student row of an attendance submission.
type AttendanceMark struct {
	StudentID string
	Status    string
	Notes     string
}

// MarkAttendanceParams wraps an attendance submission addressed by session or by course and date.
type MarkAttendanceParams struct {
	Principal Principal
	SessionID string
	CourseID  string
	Date      string
	Marks     []AttendanceMark
}

// StudentSummaryParams selects the student summary of one course.
type StudentSummaryParams struct {
	Principal Principal
	CourseID  string
	StudentID string
}

// SessionAttendanceSummary is the session summary computed against the group roster.
type SessionAttendanceSummary struct {
	SessionID string
	GroupID   string
	attendance.SessionSummary
}

// CalendarView identifies the range preset requested for calendar listings.
type CalendarView string

const (
	// CalendarDay covers a single day.
	CalendarDay CalendarView = "day"
	// CalendarWeek covers the Monday-start week containing the reference date.
	CalendarWeek CalendarView = "week"
	// CalendarMonth covers the month containing the reference date.
	CalendarMonth CalendarView = "month"
)

// CalendarParams wraps a calendar request. An empty date means today.
type CalendarParams struct {
	Principal Principal
	View      string
	Date      string
}

// CalendarEntry is one session in a calendar range, annotated with group metadata.
type CalendarEntry struct {
	Session     SessionView
	GroupName   string
	GroupStatus persistence.GroupStatus
}

// Calendar is the set of sessions within [Start, End).
type Calendar struct {
	View    CalendarView
	Start   time.Time
	End     time.Time
	Entries []CalendarEntry
}
