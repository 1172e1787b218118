package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

// GroupStore captures the persistence operations needed by the group service.
type GroupStore interface {
	persistence.GroupRepository
	persistence.EnrollmentRepository
}

// GroupService provisions groups, maintains their rosters and previews upcoming slots.
type GroupService struct {
	store GroupStore
	cfg   ServiceConfig
}

// NewGroupService constructs a group service.
func NewGroupService(store GroupStore, cfg ServiceConfig) *GroupService {
	return &GroupService{store: store, cfg: cfg.withDefaults()}
}

func (s *GroupService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.cfg.Logger, "GroupService", operation, attrs...)
}

// CreateGroup validates input and stores a new active group with an empty session counter.
func (s *GroupService) CreateGroup(ctx context.Context, params CreateGroupParams) (group persistence.Group, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("GroupService is not configured")
		return
	}

	ctx, span := startSpan(ctx, "GroupService.CreateGroup", attribute.String("course.id", params.CourseID))
	logger := s.loggerWith(ctx, "CreateGroup", "principal_id", params.Principal.TrainerID)
	defer func() {
		finishSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create group", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("group_id", group.ID).InfoContext(ctx, "group created")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	trainerID := params.Principal.TrainerID
	if override := strings.TrimSpace(params.TrainerID); override != "" && override != trainerID {
		if !params.Principal.IsAdmin {
			err = ErrUnauthorized
			return
		}
		trainerID = override
	}

	vErr := &ValidationError{}
	courseID := requireString(vErr, "courseId", params.CourseID)
	name := requireString(vErr, "name", params.Name)
	pattern := parsePattern(vErr, params.WeeklyPattern)
	start, okStart := parseDate(vErr, "startDate", params.StartDate, s.cfg.Location)
	end, okEnd := parseDate(vErr, "endDate", params.EndDate, s.cfg.Location)
	if !okStart {
		vErr.add("startDate", "startDate is required")
	}
	if !okEnd {
		vErr.add("endDate", "endDate is required")
	}
	if okStart && okEnd && !end.After(start) {
		vErr.add("endDate", "endDate must be after startDate")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.cfg.Now()
	group = persistence.Group{
		ID:            s.cfg.IDGenerator(),
		CourseID:      courseID,
		TrainerID:     trainerID,
		Name:          name,
		WeeklyPattern: pattern,
		StartDate:     start,
		EndDate:       end,
		Status:        persistence.GroupActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err = s.store.CreateGroup(ctx, group); err != nil {
		err = mapRepoError(err)
		return
	}
	s.cfg.invalidate()
	return
}

// GetGroup returns a group owned by the principal.
func (s *GroupService) GetGroup(ctx context.Context, principal Principal, groupID string) (persistence.Group, error) {
	if !principal.authenticated() {
		return persistence.Group{}, ErrUnauthorized
	}
	return loadOwnedGroup(ctx, s.store, principal, groupID)
}

// UpdateGroupStatus archives, completes, cancels or reactivates a group.
func (s *GroupService) UpdateGroupStatus(ctx context.Context, params UpdateGroupStatusParams) (group persistence.Group, err error) {
	logger := s.loggerWith(ctx, "UpdateGroupStatus",
		"principal_id", params.Principal.TrainerID,
		"group_id", params.GroupID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update group status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", group.Status).InfoContext(ctx, "group status updated")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	status := persistence.GroupStatus(strings.ToLower(strings.TrimSpace(params.Status)))
	if !status.Valid() {
		err = NewValidationError(map[string]string{"status": "status must be one of active, completed, archived, cancelled"})
		return
	}

	group, err = loadOwnedGroup(ctx, s.store, params.Principal, params.GroupID)
	if err != nil {
		return
	}
	if group.Status == status {
		return
	}

	group.Status = status
	group.UpdatedAt = s.cfg.Now()
	if err = s.store.UpdateGroup(ctx, group); err != nil {
		err = mapRepoError(err)
		return
	}
	s.cfg.invalidate()
	return
}

// UpcomingSlots previews the next count slots the weekly pattern would assign.
func (s *GroupService) UpcomingSlots(ctx context.Context, principal Principal, groupID string, count int) ([]recurrence.Slot, error) {
	if !principal.authenticated() {
		return nil, ErrUnauthorized
	}
	if count <= 0 || count > 52 {
		return nil, NewValidationError(map[string]string{"count": "count must be between 1 and 52"})
	}

	group, err := loadOwnedGroup(ctx, s.store, principal, groupID)
	if err != nil {
		return nil, err
	}

	slots, err := recurrence.Upcoming(group.WeeklyPattern, group.SessionsCreatedCount, count, s.cfg.Now(), s.cfg.Location)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return slots, nil
}

// EnrollStudent adds a student to the roster of a group.
func (s *GroupService) EnrollStudent(ctx context.Context, params EnrollStudentParams) (enrollment persistence.Enrollment, err error) {
	logger := s.loggerWith(ctx, "EnrollStudent",
		"principal_id", params.Principal.TrainerID,
		"group_id", params.GroupID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to enroll student", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("enrollment_id", enrollment.ID).InfoContext(ctx, "student enrolled")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	studentID := requireString(vErr, "studentId", params.StudentID)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var group persistence.Group
	group, err = loadOwnedGroup(ctx, s.store, params.Principal, params.GroupID)
	if err != nil {
		return
	}

	now := s.cfg.Now()
	enrollment = persistence.Enrollment{
		ID:         s.cfg.IDGenerator(),
		CourseID:   group.CourseID,
		GroupID:    group.ID,
		StudentID:  studentID,
		Status:     persistence.EnrollmentActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	if err = s.store.CreateEnrollment(ctx, enrollment); err != nil {
		err = mapRepoError(err)
		return
	}
	s.cfg.invalidate()
	return
}

// ListEnrollments returns the roster of a group.
func (s *GroupService) ListEnrollments(ctx context.Context, principal Principal, groupID string) ([]persistence.Enrollment, error) {
	if !principal.authenticated() {
		return nil, ErrUnauthorized
	}
	if _, err := loadOwnedGroup(ctx, s.store, principal, groupID); err != nil {
		return nil, err
	}
	enrollments, err := s.store.ListEnrollments(ctx, persistence.EnrollmentFilter{GroupID: groupID})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return enrollments, nil
}

type groupGetter interface {
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
}

// loadOwnedGroup hides groups of other trainers behind ErrNotFound.
func loadOwnedGroup(ctx context.Context, groups groupGetter, principal Principal, groupID string) (persistence.Group, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return persistence.Group{}, NewValidationError(map[string]string{"groupId": "groupId is required"})
	}
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return persistence.Group{}, mapRepoError(err)
	}
	if !principal.owns(group.TrainerID) {
		return persistence.Group{}, ErrNotFound
	}
	return group, nil
}

// activeRoster returns the student ids actively enrolled in a group.
func activeRoster(enrollments []persistence.Enrollment) []string {
	roster := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Status == persistence.EnrollmentDropped {
			continue
		}
		roster = append(roster, e.StudentID)
	}
	return roster
}
