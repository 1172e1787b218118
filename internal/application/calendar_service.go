package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

// CalendarStore captures the persistence operations needed by the calendar service.
type CalendarStore interface {
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
	ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error)
}

// CalendarService lists sessions for day, week and month views.
type CalendarService struct {
	store CalendarStore
	cfg   ServiceConfig
}

// NewCalendarService constructs a calendar service.
func NewCalendarService(store CalendarStore, cfg ServiceConfig) *CalendarService {
	return &CalendarService{store: store, cfg: cfg.withDefaults()}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.cfg.Logger, "CalendarService", operation, attrs...)
}

// Calendar returns the principal's sessions in the requested range with derived status
// and group metadata. Administrators see every trainer's sessions.
func (s *CalendarService) Calendar(ctx context.Context, params CalendarParams) (calendar Calendar, err error) {
	logger := s.loggerWith(ctx, "Calendar",
		"principal_id", params.Principal.TrainerID,
		"view", params.View,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(calendar.Entries)).DebugContext(ctx, "calendar built")
	}()

	if !params.Principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	view := CalendarView(strings.ToLower(strings.TrimSpace(params.View)))
	if view == "" {
		view = CalendarWeek
	}
	switch view {
	case CalendarDay, CalendarWeek, CalendarMonth:
	default:
		vErr.add("view", "view must be one of day, week, month")
	}
	now := s.cfg.Now()
	reference, ok := parseDate(vErr, "date", params.Date, s.cfg.Location)
	if !ok {
		reference = recurrence.StartOfDay(now, s.cfg.Location)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	start, end := computePeriodRange(view, reference, s.cfg.Location)
	last := end.AddDate(0, 0, -1)
	filter := persistence.SessionFilter{From: &start, To: &last}
	if !params.Principal.IsAdmin {
		filter.TrainerID = params.Principal.TrainerID
	}

	var sessions []lifecycle.Session
	sessions, err = s.store.ListSessions(ctx, filter)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	groups := make(map[string]persistence.Group)
	calendar = Calendar{View: view, Start: start, End: end, Entries: make([]CalendarEntry, 0, len(sessions))}
	for _, session := range sessions {
		group, cached := groups[session.GroupID]
		if !cached {
			group, err = s.store.GetGroup(ctx, session.GroupID)
			if err != nil {
				err = mapRepoError(err)
				return
			}
			groups[session.GroupID] = group
		}
		calendar.Entries = append(calendar.Entries, CalendarEntry{
			Session: SessionView{
				Session:       session,
				DerivedStatus: lifecycle.ComputeStatus(session, now, s.cfg.Location),
			},
			GroupName:   group.Name,
			GroupStatus: group.Status,
		})
	}
	return
}

// computePeriodRange returns the half-open range [start, end) of view around reference.
func computePeriodRange(view CalendarView, reference time.Time, loc *time.Location) (time.Time, time.Time) {
	switch view {
	case CalendarDay:
		start := recurrence.StartOfDay(reference, loc)
		return start, start.AddDate(0, 0, 1)
	case CalendarWeek:
		start := startOfWeek(reference, loc)
		return start, start.AddDate(0, 0, 7)
	case CalendarMonth:
		start := startOfMonth(reference, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	start := recurrence.StartOfDay(t, loc)
	// Calendar weeks start on Monday. In Go, Monday == 1, Sunday == 0.
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	start := recurrence.StartOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
}
