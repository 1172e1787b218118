package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
)

// AttendanceStore captures the persistence operations needed by the attendance service.
type AttendanceStore interface {
	persistence.GroupRepository
	persistence.SessionRepository
	persistence.AttendanceRepository
	persistence.EnrollmentRepository
}

// AttendanceService records attendance marks and computes summaries.
type AttendanceService struct {
	store AttendanceStore
	cfg   ServiceConfig
}

// NewAttendanceService constructs an attendance service.
func NewAttendanceService(store AttendanceStore, cfg ServiceConfig) *AttendanceService {
	return &AttendanceService{store: store, cfg: cfg.withDefaults()}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.cfg.Logger, "AttendanceService", operation, attrs...)
}

// MarkAttendance upserts every mark into the record of the addressed scope and returns
// the updated record. All marks are applied in one storage write.
func (s *AttendanceService) MarkAttendance(ctx context.Context, params MarkAttendanceParams) (record *attendance.Record, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AttendanceService is not configured")
		return
	}

	ctx, span := startSpan(ctx, "AttendanceService.MarkAttendance",
		attribute.String("session.id", params.SessionID),
		attribute.Int("marks", len(params.Marks)),
	)
	logger := s.loggerWith(ctx, "MarkAttendance", "principal_id", params.Principal.TrainerID)
	defer func() {
		finishSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to mark attendance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("record_id", record.ID, "scope", record.Scope.Key()).InfoContext(ctx, "attendance marked")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	var scope attendance.Scope
	scope, err = s.resolveScope(ctx, params)
	if err != nil {
		return
	}

	vErr := &ValidationError{}
	if len(params.Marks) == 0 {
		vErr.add("records", "at least one record is required")
	}
	statuses := make([]attendance.Status, len(params.Marks))
	for i, mark := range params.Marks {
		if strings.TrimSpace(mark.StudentID) == "" {
			vErr.add(fmt.Sprintf("records[%d].studentId", i), "studentId is required")
		}
		status, perr := attendance.ParseStatus(mark.Status)
		if perr != nil {
			vErr.add(fmt.Sprintf("records[%d].status", i), "status must be one of present, absent, late, excused")
		}
		statuses[i] = status
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.cfg.Now()
	markedBy := params.Principal.TrainerID
	record, err = s.store.UpsertAttendance(ctx, scope, s.cfg.IDGenerator(), now, func(rec *attendance.Record) error {
		for i, mark := range params.Marks {
			if _, err := rec.Mark(mark.StudentID, statuses[i], markedBy, strings.TrimSpace(mark.Notes), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.cfg.invalidate()
	return
}

// resolveScope derives the attendance scope from a session or from course and date.
func (s *AttendanceService) resolveScope(ctx context.Context, params MarkAttendanceParams) (attendance.Scope, error) {
	if sessionID := strings.TrimSpace(params.SessionID); sessionID != "" {
		session, err := loadOwnedSession(ctx, s.store, params.Principal, sessionID)
		if err != nil {
			return attendance.Scope{}, err
		}
		if session.Status == lifecycle.StatusCancelled {
			return attendance.Scope{}, fmt.Errorf("%w: attendance cannot be marked for a cancelled session", ErrInvalidTransition)
		}
		scope, err := attendance.NewScope(session.CourseID, session.ScheduledDate, s.cfg.Location)
		if err != nil {
			return attendance.Scope{}, err
		}
		return scope, nil
	}

	vErr := &ValidationError{}
	courseID := strings.TrimSpace(params.CourseID)
	if courseID == "" {
		vErr.add("sessionId", "sessionId or courseId and date are required")
	}
	date, ok := parseDate(vErr, "date", params.Date, s.cfg.Location)
	if !ok {
		vErr.add("date", "date is required when no sessionId is given")
	}
	if vErr.HasErrors() {
		return attendance.Scope{}, vErr
	}
	if err := s.ensureCourseAccess(ctx, params.Principal, courseID); err != nil {
		return attendance.Scope{}, err
	}
	return attendance.NewScope(courseID, date, s.cfg.Location)
}

// ensureCourseAccess requires non-admin principals to train a group of the course.
func (s *AttendanceService) ensureCourseAccess(ctx context.Context, principal Principal, courseID string) error {
	if principal.IsAdmin {
		return nil
	}
	groups, err := s.store.ListGroups(ctx, persistence.GroupFilter{TrainerID: principal.TrainerID, CourseID: courseID})
	if err != nil {
		return mapRepoError(err)
	}
	if len(groups) == 0 {
		return ErrNotFound
	}
	return nil
}

// StudentSummary computes a student's attendance over every record of a course.
func (s *AttendanceService) StudentSummary(ctx context.Context, params StudentSummaryParams) (summary attendance.StudentSummary, err error) {
	logger := s.loggerWith(ctx, "StudentSummary",
		"principal_id", params.Principal.TrainerID,
		"course_id", params.CourseID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to summarise student attendance", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	courseID := requireString(vErr, "courseId", params.CourseID)
	studentID := requireString(vErr, "studentId", params.StudentID)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.ensureCourseAccess(ctx, params.Principal, courseID); err != nil {
		return
	}

	var records []*attendance.Record
	records, err = s.store.ListAttendance(ctx, persistence.AttendanceFilter{CourseID: courseID})
	if err != nil {
		err = mapRepoError(err)
		return
	}
	summary = attendance.SummarizeStudent(records, studentID)
	return
}

// SessionSummary computes the attendance of one session against its group roster.
func (s *AttendanceService) SessionSummary(ctx context.Context, principal Principal, sessionID string) (SessionAttendanceSummary, error) {
	if !principal.authenticated() {
		return SessionAttendanceSummary{}, ErrUnauthorized
	}
	session, err := loadOwnedSession(ctx, s.store, principal, sessionID)
	if err != nil {
		return SessionAttendanceSummary{}, err
	}
	scope, err := attendance.NewScope(session.CourseID, session.ScheduledDate, s.cfg.Location)
	if err != nil {
		return SessionAttendanceSummary{}, err
	}

	enrollments, err := s.store.ListEnrollments(ctx, persistence.EnrollmentFilter{GroupID: session.GroupID})
	if err != nil {
		return SessionAttendanceSummary{}, mapRepoError(err)
	}
	record, err := s.store.GetAttendance(ctx, scope)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return SessionAttendanceSummary{}, mapRepoError(err)
	}

	summary := attendance.SummarizeSession(record, activeRoster(enrollments))
	summary.Scope = scope
	return SessionAttendanceSummary{
		SessionID:      session.ID,
		GroupID:        session.GroupID,
		SessionSummary: summary,
	}, nil
}
