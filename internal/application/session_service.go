package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

// SessionStore captures the persistence operations needed by the session service.
type SessionStore interface {
	persistence.GroupRepository
	persistence.SessionRepository
	persistence.EvaluationRepository
}

// SessionService schedules sessions and drives their lifecycle.
type SessionService struct {
	store    SessionStore
	resolver *recurrence.Resolver
	cfg      ServiceConfig
}

// NewSessionService constructs a session service.
func NewSessionService(store SessionStore, cfg ServiceConfig) *SessionService {
	cfg = cfg.withDefaults()
	return &SessionService{store: store, resolver: recurrence.NewResolver(cfg.Location), cfg: cfg}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.cfg.Logger, "SessionService", operation, attrs...)
}

func (s *SessionService) view(session lifecycle.Session) SessionView {
	return SessionView{
		Session:       session,
		DerivedStatus: lifecycle.ComputeStatus(session, s.cfg.Now(), s.cfg.Location),
	}
}

// CreateSession appends the next session of a group.
//
// Without an explicit date the slot comes from the group's weekly pattern and its
// session counter. The counter is advanced atomically with the insert; a lost race is
// retried against a fresh read of the group.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (view SessionView, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("SessionService is not configured")
		return
	}

	ctx, span := startSpan(ctx, "SessionService.CreateSession", attribute.String("group.id", params.GroupID))
	logger := s.loggerWith(ctx, "CreateSession",
		"principal_id", params.Principal.TrainerID,
		"group_id", params.GroupID,
	)
	defer func() {
		finishSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", view.ID, "ordinal", view.Ordinal).InfoContext(ctx, "session created")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	title := requireString(vErr, "title", params.Title)
	requireString(vErr, "groupId", params.GroupID)
	manualDate, manual := parseDate(vErr, "scheduledDate", params.ScheduledDate, s.cfg.Location)
	var manualStart, manualEnd recurrence.Clock
	if manual {
		var okStart, okEnd bool
		manualStart, okStart = parseClock(vErr, "startTime", params.StartTime)
		manualEnd, okEnd = parseClock(vErr, "endTime", params.EndTime)
		if okStart && okEnd && manualEnd <= manualStart {
			vErr.add("endTime", "endTime must be after startTime")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	id := s.cfg.IDGenerator()
	attempt := func() (lifecycle.Session, error) {
		group, err := loadOwnedGroup(ctx, s.store, params.Principal, params.GroupID)
		if err != nil {
			return lifecycle.Session{}, backoff.Permanent(err)
		}
		if group.Status != persistence.GroupActive {
			return lifecycle.Session{}, backoff.Permanent(NewValidationError(map[string]string{
				"groupId": "sessions can only be scheduled for active groups",
			}))
		}

		now := s.cfg.Now()
		session := lifecycle.Session{
			ID:          id,
			GroupID:     group.ID,
			CourseID:    group.CourseID,
			TrainerID:   group.TrainerID,
			Ordinal:     group.SessionsCreatedCount + 1,
			Title:       title,
			Description: params.Description,
			LessonPlan:  params.LessonPlan,
			Status:      lifecycle.StatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if manual {
			session.ScheduledDate = manualDate
			session.StartTime = manualStart
			session.EndTime = manualEnd
		} else {
			slot, err := s.resolver.NextSlot(group.WeeklyPattern, group.SessionsCreatedCount, now)
			if err != nil {
				return lifecycle.Session{}, backoff.Permanent(mapDomainError(err))
			}
			session.ScheduledDate = slot.Date
			session.StartTime = slot.Start
			session.EndTime = slot.End
			session.Location = slot.Location
		}
		if loc := strings.TrimSpace(params.Location); loc != "" {
			session.Location = loc
		}

		if err := s.store.AppendSession(ctx, session, group.SessionsCreatedCount); err != nil {
			if errors.Is(err, persistence.ErrConcurrentUpdate) {
				logger.WarnContext(ctx, "session counter moved, retrying", "expected_count", group.SessionsCreatedCount)
				return lifecycle.Session{}, err
			}
			return lifecycle.Session{}, backoff.Permanent(mapRepoError(err))
		}
		return session, nil
	}

	var session lifecycle.Session
	session, err = backoff.Retry(ctx, attempt,
		backoff.WithBackOff(newCreateBackOff()),
		backoff.WithMaxTries(uint(s.cfg.CreateRetries+1)),
	)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.cfg.invalidate()
	view = s.view(session)
	return
}

func newCreateBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return b
}

// GetSession returns a session owned by the principal.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	session, err := s.loadOwned(ctx, principal, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(session), nil
}

// ListSessions returns sessions with their derived status. The status filter applies to
// the derived value, not the stored one.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) (views []SessionView, err error) {
	logger := s.loggerWith(ctx, "ListSessions", "principal_id", params.Principal.TrainerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(views)).DebugContext(ctx, "sessions listed")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	filter := persistence.SessionFilter{GroupID: strings.TrimSpace(params.GroupID)}
	if !params.Principal.IsAdmin {
		filter.TrainerID = params.Principal.TrainerID
	}
	if from, ok := parseDate(vErr, "startDate", params.StartDate, s.cfg.Location); ok {
		filter.From = &from
	}
	if to, ok := parseDate(vErr, "endDate", params.EndDate, s.cfg.Location); ok {
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		vErr.add("endDate", "endDate must not be before startDate")
	}
	var status lifecycle.Status
	if raw := strings.TrimSpace(params.Status); raw != "" {
		parsed, perr := lifecycle.ParseStatus(raw)
		if perr != nil {
			vErr.add("status", "status must be one of scheduled, in_progress, completed, cancelled")
		}
		status = parsed
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var sessions []lifecycle.Session
	sessions, err = s.store.ListSessions(ctx, filter)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	views = make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		v := s.view(session)
		if status != "" && v.DerivedStatus != status {
			continue
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StartsAt(s.cfg.Location).Before(views[j].StartsAt(s.cfg.Location))
	})
	return
}

// StartSession records the actual start of a scheduled session.
func (s *SessionService) StartSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	return s.transition(ctx, "StartSession", principal, sessionID, func(session *lifecycle.Session, now time.Time) error {
		return session.Start(now)
	})
}

// EndSession records the actual end of an in-progress session.
func (s *SessionService) EndSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	return s.transition(ctx, "EndSession", principal, sessionID, func(session *lifecycle.Session, now time.Time) error {
		return session.End(now)
	})
}

// UpdateSession edits the descriptive fields of a session that is not completed.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (SessionView, error) {
	if params.Update.Empty() {
		return SessionView{}, NewValidationError(map[string]string{"session": "at least one field must be supplied"})
	}
	if params.Update.Title != nil && strings.TrimSpace(*params.Update.Title) == "" {
		return SessionView{}, NewValidationError(map[string]string{"title": "title is required"})
	}
	return s.transition(ctx, "UpdateSession", params.Principal, params.SessionID, func(session *lifecycle.Session, now time.Time) error {
		return session.ApplyContent(params.Update, now)
	})
}

// DeleteSession cancels a session, or removes it with its attendance and evaluation
// when Permanent is set.
func (s *SessionService) DeleteSession(ctx context.Context, params DeleteSessionParams) (err error) {
	logger := s.loggerWith(ctx, "DeleteSession",
		"principal_id", params.Principal.TrainerID,
		"session_id", params.SessionID,
		"permanent", params.Permanent,
	)

	if !params.Permanent {
		_, err = s.transition(ctx, "CancelSession", params.Principal, params.SessionID, func(session *lifecycle.Session, now time.Time) error {
			return session.Cancel(params.Reason, now)
		})
		return err
	}

	ctx, span := startSpan(ctx, "SessionService.DeleteSession", attribute.String("session.id", params.SessionID))
	defer func() { finishSpan(span, err) }()

	if _, err = s.loadOwned(ctx, params.Principal, params.SessionID); err != nil {
		logger.ErrorContext(ctx, "failed to delete session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if err = s.store.DeleteSession(ctx, params.SessionID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.cfg.invalidate()
	logger.InfoContext(ctx, "session deleted")
	return nil
}

// EvaluateSession stores the trainer's rating of a session. Cancelled sessions cannot be evaluated.
func (s *SessionService) EvaluateSession(ctx context.Context, params EvaluateSessionParams) (evaluation persistence.Evaluation, err error) {
	logger := s.loggerWith(ctx, "EvaluateSession",
		"principal_id", params.Principal.TrainerID,
		"session_id", params.SessionID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to evaluate session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session evaluated", "rating", evaluation.Rating)
	}()

	if params.Rating < 1 || params.Rating > 5 {
		err = NewValidationError(map[string]string{"rating": "rating must be between 1 and 5"})
		return
	}

	var session lifecycle.Session
	session, err = s.loadOwned(ctx, params.Principal, params.SessionID)
	if err != nil {
		return
	}
	if session.Status == lifecycle.StatusCancelled {
		err = fmt.Errorf("%w: cancelled sessions cannot be evaluated", ErrInvalidTransition)
		return
	}

	now := s.cfg.Now()
	evaluation = persistence.Evaluation{
		SessionID: session.ID,
		TrainerID: session.TrainerID,
		Rating:    params.Rating,
		Comment:   strings.TrimSpace(params.Comment),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.UpsertEvaluation(ctx, evaluation); err != nil {
		err = mapRepoError(err)
		return
	}
	evaluation, err = s.store.GetEvaluation(ctx, session.ID)
	err = mapRepoError(err)
	return
}

// GetEvaluation returns the evaluation of a session.
func (s *SessionService) GetEvaluation(ctx context.Context, principal Principal, sessionID string) (persistence.Evaluation, error) {
	if _, err := s.loadOwned(ctx, principal, sessionID); err != nil {
		return persistence.Evaluation{}, err
	}
	evaluation, err := s.store.GetEvaluation(ctx, sessionID)
	if err != nil {
		return persistence.Evaluation{}, mapRepoError(err)
	}
	return evaluation, nil
}

func (s *SessionService) transition(ctx context.Context, operation string, principal Principal, sessionID string, apply func(*lifecycle.Session, time.Time) error) (view SessionView, err error) {
	ctx, span := startSpan(ctx, "SessionService."+operation, attribute.String("session.id", sessionID))
	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.TrainerID,
		"session_id", sessionID,
	)
	defer func() {
		finishSpan(span, err)
		if err != nil {
			logger.ErrorContext(ctx, "session update rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", view.Status).InfoContext(ctx, "session updated")
	}()

	var session lifecycle.Session
	session, err = s.loadOwned(ctx, principal, sessionID)
	if err != nil {
		return
	}
	read := session.Status
	if err = apply(&session, s.cfg.Now()); err != nil {
		err = mapDomainError(err)
		return
	}
	if err = s.store.UpdateSession(ctx, session, read); err != nil {
		// Another writer moved the session off the status this action was checked against.
		if errors.Is(err, persistence.ErrConcurrentUpdate) {
			err = fmt.Errorf("%w: session is no longer %s", ErrInvalidTransition, read)
			return
		}
		err = mapRepoError(err)
		return
	}
	s.cfg.invalidate()
	view = s.view(session)
	return
}

// loadOwned hides sessions of other trainers behind ErrNotFound.
func (s *SessionService) loadOwned(ctx context.Context, principal Principal, sessionID string) (lifecycle.Session, error) {
	if !principal.authenticated() {
		return lifecycle.Session{}, ErrUnauthorized
	}
	return loadOwnedSession(ctx, s.store, principal, sessionID)
}

type sessionGetter interface {
	GetSession(ctx context.Context, id string) (lifecycle.Session, error)
}

func loadOwnedSession(ctx context.Context, sessions sessionGetter, principal Principal, sessionID string) (lifecycle.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return lifecycle.Session{}, NewValidationError(map[string]string{"sessionId": "sessionId is required"})
	}
	session, err := sessions.GetSession(ctx, sessionID)
	if err != nil {
		return lifecycle.Session{}, mapRepoError(err)
	}
	if !principal.owns(session.TrainerID) {
		return lifecycle.Session{}, ErrNotFound
	}
	return session, nil
}
