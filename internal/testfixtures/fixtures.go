package testfixtures

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

var (
	groupCounter      uint64
	sessionCounter    uint64
	enrollmentCounter uint64
	recordCounter     uint64
)

// referenceTime is Tuesday 2024-03-05 08:00 UTC.
var referenceTime = time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day returns midnight UTC of the given March 2024 day.
func Day(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}

// MondayWednesday is a two-slot weekly pattern, 09:00-11:00 on both days.
func MondayWednesday() []recurrence.Entry {
	return []recurrence.Entry{
		{Weekday: time.Monday, Start: recurrence.MustParseClock("09:00"), End: recurrence.MustParseClock("11:00"), Location: "Room A"},
		{Weekday: time.Wednesday, Start: recurrence.MustParseClock("09:00"), End: recurrence.MustParseClock("11:00"), Location: "Room B"},
	}
}

// ----------------------------- Group fixtures -----------------------------

// GroupFixture is a deterministic training group.
type GroupFixture struct {
	ID            string
	CourseID      string
	TrainerID     string
	Name          string
	WeeklyPattern []recurrence.Entry
	StartDate     time.Time
	EndDate       time.Time
	Status        persistence.GroupStatus
	CreatedAt     time.Time
}

// GroupOption configures a GroupFixture.
type GroupOption func(*GroupFixture)

// NewGroupFixture returns an active Monday/Wednesday group running March to June 2024.
func NewGroupFixture(opts ...GroupOption) GroupFixture {
	idx := atomic.AddUint64(&groupCounter, 1)
	fixture := GroupFixture{
		ID:            fmt.Sprintf("group-%03d", idx),
		CourseID:      "course-1",
		TrainerID:     "trainer-1",
		Name:          fmt.Sprintf("Group %03d", idx),
		WeeklyPattern: MondayWednesday(),
		StartDate:     Day(1),
		EndDate:       time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC),
		Status:        persistence.GroupActive,
		CreatedAt:     referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGroupID overrides the generated group ID.
func WithGroupID(id string) GroupOption {
	return func(f *GroupFixture) { f.ID = id }
}

// WithGroupCourse sets the course the group belongs to.
func WithGroupCourse(courseID string) GroupOption {
	return func(f *GroupFixture) { f.CourseID = courseID }
}

// WithGroupTrainer sets the owning trainer.
func WithGroupTrainer(trainerID string) GroupOption {
	return func(f *GroupFixture) { f.TrainerID = trainerID }
}

// WithGroupPattern replaces the weekly pattern.
func WithGroupPattern(entries ...recurrence.Entry) GroupOption {
	return func(f *GroupFixture) { f.WeeklyPattern = entries }
}

// WithGroupStatus sets the stored status.
func WithGroupStatus(status persistence.GroupStatus) GroupOption {
	return func(f *GroupFixture) { f.Status = status }
}

// WithGroupDates sets the inclusive date range of the group.
func WithGroupDates(start, end time.Time) GroupOption {
	return func(f *GroupFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// Persistence returns the fixture as a stored group with no sessions yet.
func (f GroupFixture) Persistence() persistence.Group {
	pattern := make([]recurrence.Entry, len(f.WeeklyPattern))
	copy(pattern, f.WeeklyPattern)
	return persistence.Group{
		ID:            f.ID,
		CourseID:      f.CourseID,
		TrainerID:     f.TrainerID,
		Name:          f.Name,
		WeeklyPattern: pattern,
		StartDate:     f.StartDate,
		EndDate:       f.EndDate,
		Status:        f.Status,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.CreatedAt,
	}
}

// Principal returns the owning trainer as a non-admin principal.
func (f GroupFixture) Principal() application.Principal {
	return application.Principal{TrainerID: f.TrainerID}
}

// CreateParams returns the fixture as service input owned by its trainer.
func (f GroupFixture) CreateParams() application.CreateGroupParams {
	entries := make([]application.PatternEntryInput, 0, len(f.WeeklyPattern))
	for _, e := range f.WeeklyPattern {
		entries = append(entries, application.PatternEntryInput{
			Weekday:   e.Weekday.String(),
			StartTime: e.Start.String(),
			EndTime:   e.End.String(),
			Location:  e.Location,
		})
	}
	return application.CreateGroupParams{
		Principal:     f.Principal(),
		CourseID:      f.CourseID,
		Name:          f.Name,
		WeeklyPattern: entries,
		StartDate:     f.StartDate.Format(time.DateOnly),
		EndDate:       f.EndDate.Format(time.DateOnly),
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture is a deterministic session of a group.
type SessionFixture struct {
	ID            string
	GroupID       string
	CourseID      string
	TrainerID     string
	Ordinal       int
	Title         string
	ScheduledDate time.Time
	StartTime     recurrence.Clock
	EndTime       recurrence.Clock
	Location      string
	Status        lifecycle.Status
	CreatedAt     time.Time
}

// SessionOption configures a SessionFixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns the first scheduled session of group, held on Monday 2024-03-04 09:00-11:00.
func NewSessionFixture(group GroupFixture, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:            fmt.Sprintf("session-%03d", idx),
		GroupID:       group.ID,
		CourseID:      group.CourseID,
		TrainerID:     group.TrainerID,
		Ordinal:       1,
		Title:         "Lesson 1",
		ScheduledDate: Day(4),
		StartTime:     recurrence.MustParseClock("09:00"),
		EndTime:       recurrence.MustParseClock("11:00"),
		Location:      "Room A",
		Status:        lifecycle.StatusScheduled,
		CreatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) { f.ID = id }
}

// WithSessionOrdinal sets the position of the session in its group and names it after it.
func WithSessionOrdinal(ordinal int) SessionOption {
	return func(f *SessionFixture) {
		f.Ordinal = ordinal
		f.Title = fmt.Sprintf("Lesson %d", ordinal)
	}
}

// WithSessionDate moves the session to day.
func WithSessionDate(day time.Time) SessionOption {
	return func(f *SessionFixture) { f.ScheduledDate = day }
}

// WithSessionWindow sets the HH:MM window of the session.
func WithSessionWindow(start, end string) SessionOption {
	return func(f *SessionFixture) {
		f.StartTime = recurrence.MustParseClock(start)
		f.EndTime = recurrence.MustParseClock(end)
	}
}

// WithSessionStatus sets the stored status.
func WithSessionStatus(status lifecycle.Status) SessionOption {
	return func(f *SessionFixture) { f.Status = status }
}

// Lifecycle returns the fixture as a stored session.
func (f SessionFixture) Lifecycle() lifecycle.Session {
	return lifecycle.Session{
		ID:            f.ID,
		GroupID:       f.GroupID,
		CourseID:      f.CourseID,
		TrainerID:     f.TrainerID,
		Ordinal:       f.Ordinal,
		Title:         f.Title,
		ScheduledDate: f.ScheduledDate,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		Location:      f.Location,
		Status:        f.Status,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.CreatedAt,
	}
}

// ----------------------------- Enrollment fixtures -----------------------------

// EnrollmentFixture is a deterministic student enrollment.
type EnrollmentFixture struct {
	ID         string
	CourseID   string
	GroupID    string
	StudentID  string
	Status     persistence.EnrollmentStatus
	EnrolledAt time.Time
}

// EnrollmentOption configures an EnrollmentFixture.
type EnrollmentOption func(*EnrollmentFixture)

// NewEnrollmentFixture returns an active enrollment of studentID in group.
func NewEnrollmentFixture(group GroupFixture, studentID string, opts ...EnrollmentOption) EnrollmentFixture {
	idx := atomic.AddUint64(&enrollmentCounter, 1)
	fixture := EnrollmentFixture{
		ID:         fmt.Sprintf("enrollment-%03d", idx),
		CourseID:   group.CourseID,
		GroupID:    group.ID,
		StudentID:  studentID,
		Status:     persistence.EnrollmentActive,
		EnrolledAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEnrollmentStatus sets the enrollment status.
func WithEnrollmentStatus(status persistence.EnrollmentStatus) EnrollmentOption {
	return func(f *EnrollmentFixture) { f.Status = status }
}

// Persistence returns the fixture as a stored enrollment.
func (f EnrollmentFixture) Persistence() persistence.Enrollment {
	return persistence.Enrollment{
		ID:         f.ID,
		CourseID:   f.CourseID,
		GroupID:    f.GroupID,
		StudentID:  f.StudentID,
		Status:     f.Status,
		EnrolledAt: f.EnrolledAt,
		UpdatedAt:  f.EnrolledAt,
	}
}

// ----------------------------- Attendance fixtures -----------------------------

// AttendanceFixture is a record of marks for one course on one date.
type AttendanceFixture struct {
	ID       string
	CourseID string
	Date     time.Time
	MarkedBy string
	Marks    map[string]attendance.Status
	MarkedAt time.Time
}

// AttendanceOption configures an AttendanceFixture.
type AttendanceOption func(*AttendanceFixture)

// NewAttendanceFixture returns an empty record for session's course and date.
func NewAttendanceFixture(session SessionFixture, opts ...AttendanceOption) AttendanceFixture {
	idx := atomic.AddUint64(&recordCounter, 1)
	fixture := AttendanceFixture{
		ID:       fmt.Sprintf("record-%03d", idx),
		CourseID: session.CourseID,
		Date:     session.ScheduledDate,
		MarkedBy: session.TrainerID,
		Marks:    map[string]attendance.Status{},
		MarkedAt: session.StartTime.On(session.ScheduledDate, time.UTC),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMark records status for studentID.
func WithMark(studentID string, status attendance.Status) AttendanceOption {
	return func(f *AttendanceFixture) { f.Marks[studentID] = status }
}

// Scope returns the record's course and date.
func (f AttendanceFixture) Scope() attendance.Scope {
	scope, err := attendance.NewScope(f.CourseID, f.Date, time.UTC)
	if err != nil {
		panic(err)
	}
	return scope
}

// Record builds the attendance record with one entry per mark, in student order.
func (f AttendanceFixture) Record() *attendance.Record {
	rec := attendance.NewRecord(f.ID, f.Scope(), f.MarkedAt)
	for _, studentID := range sortedKeys(f.Marks) {
		if _, err := rec.Mark(studentID, f.Marks[studentID], f.MarkedBy, "", f.MarkedAt); err != nil {
			panic(err)
		}
	}
	return rec
}

func sortedKeys(m map[string]attendance.Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
