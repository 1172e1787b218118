package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the attendance state of one student for one scope.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var (
	// ErrInvalidStatus is returned when an unsupported status is marked.
	ErrInvalidStatus = errors.New("attendance: invalid status")
	// ErrMissingStudent is returned when a mark does not name a student.
	ErrMissingStudent = errors.New("attendance: student id is required")
	// ErrInvalidScope is returned when a scope lacks a course or date.
	ErrInvalidScope = errors.New("attendance: scope requires course and date")
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	default:
		return false
	}
}

// stampsCheckIn reports whether marking s records a check-in time.
func (s Status) stampsCheckIn() bool {
	return s == StatusPresent || s == StatusLate
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// Scope identifies an attendance record: one course on one calendar date.
type Scope struct {
	CourseID string
	Date     time.Time
}

// NewScope normalises date to midnight in loc.
func NewScope(courseID string, date time.Time, loc *time.Location) (Scope, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" || date.IsZero() {
		return Scope{}, ErrInvalidScope
	}
	if loc == nil {
		loc = date.Location()
	}
	y, m, d := date.In(loc).Date()
	return Scope{CourseID: courseID, Date: time.Date(y, m, d, 0, 0, 0, 0, loc)}, nil
}

// Key renders a stable identity string for the scope.
func (s Scope) Key() string {
	return s.CourseID + "@" + s.Date.Format(time.DateOnly)
}

// StudentAttendance is the attendance fact for one student within a record.
type StudentAttendance struct {
	StudentID   string
	Status      Status
	MarkedBy    string
	MarkedAt    time.Time
	CheckInTime *time.Time
	Notes       string
}

// Record groups the attendance facts of one scope.
type Record struct {
	ID        string
	Scope     Scope
	Entries   []StudentAttendance
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates an empty record for scope.
func NewRecord(id string, scope Scope, now time.Time) *Record {
	return &Record{ID: id, Scope: scope, CreatedAt: now, UpdatedAt: now}
}

// Mark upserts the entry for studentID.
//
// An existing entry is overwritten in place so repeated marks never duplicate a student.
// The check-in time is stamped with now for present and late, and cleared otherwise.
func (r *Record) Mark(studentID string, status Status, markedBy, notes string, now time.Time) (StudentAttendance, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return StudentAttendance{}, ErrMissingStudent
	}
	if !status.Valid() {
		return StudentAttendance{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	entry := StudentAttendance{
		StudentID: studentID,
		Status:    status,
		MarkedBy:  markedBy,
		MarkedAt:  now,
		Notes:     notes,
	}
	if status.stampsCheckIn() {
		checkIn := now
		entry.CheckInTime = &checkIn
	}

	if idx := r.indexOf(studentID); idx >= 0 {
		r.Entries[idx] = entry
	} else {
		r.Entries = append(r.Entries, entry)
	}
	r.UpdatedAt = now
	return entry, nil
}

// Entry returns the entry recorded for studentID.
func (r *Record) Entry(studentID string) (StudentAttendance, bool) {
	if r == nil {
		return StudentAttendance{}, false
	}
	if idx := r.indexOf(studentID); idx >= 0 {
		return r.Entries[idx], true
	}
	return StudentAttendance{}, false
}

func (r *Record) indexOf(studentID string) int {
	for i := range r.Entries {
		if r.Entries[i].StudentID == studentID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Entries = make([]StudentAttendance, len(r.Entries))
	for i, e := range r.Entries {
		if e.CheckInTime != nil {
			t := *e.CheckInTime
			e.CheckInTime = &t
		}
		out.Entries[i] = e
	}
	return &out
}
