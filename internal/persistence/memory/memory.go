// Package memory provides a mutex-guarded in-memory implementation of every repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
)

// Storage keeps all records in maps guarded by a single lock.
type Storage struct {
	mu          sync.RWMutex
	groups      map[string]persistence.Group
	sessions    map[string]lifecycle.Session
	records     map[string]*attendance.Record
	enrollments map[string]persistence.Enrollment
	evaluations map[string]persistence.Evaluation
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		groups:      make(map[string]persistence.Group),
		sessions:    make(map[string]lifecycle.Session),
		records:     make(map[string]*attendance.Record),
		enrollments: make(map[string]persistence.Enrollment),
		evaluations: make(map[string]persistence.Evaluation),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- GroupRepository implementation ---

// CreateGroup stores a new group.
func (s *Storage) CreateGroup(ctx context.Context, group persistence.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group.ID]; ok {
		return fmt.Errorf("memory: group %s: %w", group.ID, persistence.ErrDuplicate)
	}
	s.groups[group.ID] = persistence.CloneGroup(group)
	return nil
}

// UpdateGroup replaces an existing group. The session counter is owned by AppendSession
// and DeleteSession and is never overwritten here.
func (s *Storage) UpdateGroup(ctx context.Context, group persistence.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.groups[group.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	group.SessionsCreatedCount = current.SessionsCreatedCount
	group.CreatedAt = current.CreatedAt
	s.groups[group.ID] = persistence.CloneGroup(group)
	return nil
}

// GetGroup retrieves a group by ID.
func (s *Storage) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return persistence.Group{}, persistence.ErrNotFound
	}
	return persistence.CloneGroup(group), nil
}

// ListGroups returns groups matching filter ordered by CreatedAt ascending.
func (s *Storage) ListGroups(ctx context.Context, filter persistence.GroupFilter) ([]persistence.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]persistence.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if filter.TrainerID != "" && g.TrainerID != filter.TrainerID {
			continue
		}
		if filter.CourseID != "" && g.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		groups = append(groups, persistence.CloneGroup(g))
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].ID < groups[j].ID
		}
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, nil
}

// AppendSession stores session and bumps the group counter if it still equals expectedCount.
func (s *Storage) AppendSession(ctx context.Context, session lifecycle.Session, expectedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[session.GroupID]
	if !ok {
		return persistence.ErrNotFound
	}
	if group.SessionsCreatedCount != expectedCount {
		return persistence.ErrConcurrentUpdate
	}
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("memory: session %s: %w", session.ID, persistence.ErrDuplicate)
	}

	group.SessionsCreatedCount++
	group.UpdatedAt = session.CreatedAt
	s.groups[group.ID] = group
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// --- SessionRepository implementation ---

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (lifecycle.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return lifecycle.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession replaces an existing session if its stored status still equals expected.
func (s *Storage) UpdateSession(ctx context.Context, session lifecycle.Session, expected lifecycle.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if stored.Status != expected {
		return persistence.ErrConcurrentUpdate
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// ListSessions returns sessions ordered by scheduled date, start time and ordinal.
func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var from, to string
	if filter.From != nil {
		from = persistence.DateKey(*filter.From)
	}
	if filter.To != nil {
		to = persistence.DateKey(*filter.To)
	}

	sessions := make([]lifecycle.Session, 0)
	for _, session := range s.sessions {
		if filter.GroupID != "" && session.GroupID != filter.GroupID {
			continue
		}
		if filter.TrainerID != "" && session.TrainerID != filter.TrainerID {
			continue
		}
		day := persistence.DateKey(session.ScheduledDate)
		if from != "" && day < from {
			continue
		}
		if to != "" && day > to {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if da, db := persistence.DateKey(a.ScheduledDate), persistence.DateKey(b.ScheduledDate); da != db {
			return da < db
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.ID < b.ID
	})
	return sessions, nil
}

// DeleteSession removes a session and cascades to its attendance record and evaluation.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.evaluations, id)
	if !s.dateSharedLocked(session) {
		delete(s.records, recordKey(session.CourseID, session.ScheduledDate))
	}

	if group, ok := s.groups[session.GroupID]; ok {
		if group.SessionsCreatedCount > 0 {
			group.SessionsCreatedCount--
		}
		s.groups[group.ID] = group
	}
	return nil
}

// dateSharedLocked reports whether another session of the same course falls on the
// session's date and still owns the attendance record. Caller must hold s.mu.
func (s *Storage) dateSharedLocked(session lifecycle.Session) bool {
	key := recordKey(session.CourseID, session.ScheduledDate)
	for id, other := range s.sessions {
		if id != session.ID && recordKey(other.CourseID, other.ScheduledDate) == key {
			return true
		}
	}
	return false
}

// --- AttendanceRepository implementation ---

// UpsertAttendance applies mutate to the record of scope under the storage lock.
func (s *Storage) UpsertAttendance(ctx context.Context, scope attendance.Scope, newID string, now time.Time, mutate func(*attendance.Record) error) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(scope.CourseID, scope.Date)
	working := s.records[key].Clone()
	if working == nil {
		working = attendance.NewRecord(newID, scope, now)
	}
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.records[key] = working
	return working.Clone(), nil
}

// GetAttendance returns the record of scope.
func (s *Storage) GetAttendance(ctx context.Context, scope attendance.Scope) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(scope.CourseID, scope.Date)]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return rec.Clone(), nil
}

// ListAttendance returns records matching filter ordered by date.
func (s *Storage) ListAttendance(ctx context.Context, filter persistence.AttendanceFilter) ([]*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var from, to string
	if filter.From != nil {
		from = persistence.DateKey(*filter.From)
	}
	if filter.To != nil {
		to = persistence.DateKey(*filter.To)
	}

	out := make([]*attendance.Record, 0)
	for _, rec := range s.records {
		if filter.CourseID != "" && rec.Scope.CourseID != filter.CourseID {
			continue
		}
		day := persistence.DateKey(rec.Scope.Date)
		if from != "" && day < from {
			continue
		}
		if to != "" && day > to {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope.CourseID != out[j].Scope.CourseID {
			return out[i].Scope.CourseID < out[j].Scope.CourseID
		}
		return out[i].Scope.Date.Before(out[j].Scope.Date)
	})
	return out, nil
}

// --- EnrollmentRepository implementation ---

// CreateEnrollment stores a new enrollment; a student can be enrolled in a group once.
func (s *Storage) CreateEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[enrollment.ID]; ok {
		return fmt.Errorf("memory: enrollment %s: %w", enrollment.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.enrollments {
		if existing.GroupID == enrollment.GroupID && existing.StudentID == enrollment.StudentID {
			return fmt.Errorf("memory: student %s already in group %s: %w", enrollment.StudentID, enrollment.GroupID, persistence.ErrDuplicate)
		}
	}
	s.enrollments[enrollment.ID] = enrollment
	return nil
}

// ListEnrollments returns enrollments matching filter ordered by enrollment time.
func (s *Storage) ListEnrollments(ctx context.Context, filter persistence.EnrollmentFilter) ([]persistence.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Enrollment, 0)
	for _, e := range s.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.GroupID != "" && e.GroupID != filter.GroupID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out, nil
}

// --- EvaluationRepository implementation ---

// UpsertEvaluation stores or replaces the evaluation of a session.
func (s *Storage) UpsertEvaluation(ctx context.Context, evaluation persistence.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[evaluation.SessionID]; !ok {
		return persistence.ErrNotFound
	}
	if existing, ok := s.evaluations[evaluation.SessionID]; ok {
		evaluation.CreatedAt = existing.CreatedAt
	}
	s.evaluations[evaluation.SessionID] = evaluation
	return nil
}

// GetEvaluation returns the evaluation of a session.
func (s *Storage) GetEvaluation(ctx context.Context, sessionID string) (persistence.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evaluation, ok := s.evaluations[sessionID]
	if !ok {
		return persistence.Evaluation{}, persistence.ErrNotFound
	}
	return evaluation, nil
}

func recordKey(courseID string, date time.Time) string {
	return courseID + "@" + persistence.DateKey(date)
}

func cloneSession(session lifecycle.Session) lifecycle.Session {
	if session.ActualStart != nil {
		t := *session.ActualStart
		session.ActualStart = &t
	}
	if session.ActualEnd != nil {
		t := *session.ActualEnd
		session.ActualEnd = &t
	}
	return session
}
