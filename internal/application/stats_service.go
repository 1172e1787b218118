package application

import (
	"context"
	"log/slog"
	"sort"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/stats"
)

// StatsStore captures the persistence operations needed by the stats service.
type StatsStore interface {
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
	ListGroups(ctx context.Context, filter persistence.GroupFilter) ([]persistence.Group, error)
	ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error)
	ListAttendance(ctx context.Context, filter persistence.AttendanceFilter) ([]*attendance.Record, error)
	ListEnrollments(ctx context.Context, filter persistence.EnrollmentFilter) ([]persistence.Enrollment, error)
}

const dashboardCacheKey = "dashboard"

// StatsService computes group statistics and the administrator dashboard.
// It implements CacheInvalidator for the services that write attendance data.
type StatsService struct {
	store StatsStore
	cfg   ServiceConfig
	cache *dashboardCache
}

// NewStatsService constructs a stats service. cfg.DashboardTTL bounds how long a
// dashboard is reused when no write invalidates it.
func NewStatsService(store StatsStore, cfg ServiceConfig) *StatsService {
	cfg = cfg.withDefaults()
	return &StatsService{
		store: store,
		cfg:   cfg,
		cache: newDashboardCache(cfg.DashboardTTL, 0, cfg.Now),
	}
}

// Invalidate drops cached dashboards.
func (s *StatsService) Invalidate() {
	if s != nil {
		s.cache.Invalidate()
	}
}

func (s *StatsService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.cfg.Logger, "StatsService", operation, attrs...)
}

// GroupStats computes the per-session rates and average attendance of a group.
func (s *StatsService) GroupStats(ctx context.Context, principal Principal, groupID string) (stats.GroupStats, error) {
	if !principal.authenticated() {
		return stats.GroupStats{}, ErrUnauthorized
	}
	group, err := loadOwnedGroup(ctx, s.store, principal, groupID)
	if err != nil {
		return stats.GroupStats{}, err
	}
	records, err := s.courseRecords(ctx, group.CourseID, nil)
	if err != nil {
		return stats.GroupStats{}, err
	}
	input, err := s.groupInput(ctx, group, records)
	if err != nil {
		return stats.GroupStats{}, err
	}
	return stats.GroupAverage(input), nil
}

// Dashboard returns the trainer ranking, course breakdown and low-attendance alerts.
// Only administrators may read it.
func (s *StatsService) Dashboard(ctx context.Context, principal Principal) (dashboard stats.Dashboard, err error) {
	logger := s.loggerWith(ctx, "Dashboard", "principal_id", principal.TrainerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build dashboard", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !principal.authenticated() || !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	if cached, ok := s.cache.Get(dashboardCacheKey); ok {
		logger.DebugContext(ctx, "dashboard served from cache")
		return cached, nil
	}

	ctx, span := startSpan(ctx, "StatsService.Dashboard")
	defer func() { finishSpan(span, err) }()

	var groups []persistence.Group
	groups, err = s.store.ListGroups(ctx, persistence.GroupFilter{})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	recordsByCourse := make(map[string]map[string]*attendance.Record)
	trainerSet := make(map[string]struct{})
	groupStats := make([]stats.GroupStats, 0, len(groups))
	for _, group := range groups {
		trainerSet[group.TrainerID] = struct{}{}
		records, rerr := s.courseRecords(ctx, group.CourseID, recordsByCourse)
		if rerr != nil {
			err = rerr
			return
		}
		input, ierr := s.groupInput(ctx, group, records)
		if ierr != nil {
			err = ierr
			return
		}
		groupStats = append(groupStats, stats.GroupAverage(input))
	}

	trainerIDs := make([]string, 0, len(trainerSet))
	for id := range trainerSet {
		trainerIDs = append(trainerIDs, id)
	}
	sort.Strings(trainerIDs)

	var enrollments []persistence.Enrollment
	enrollments, err = s.store.ListEnrollments(ctx, persistence.EnrollmentFilter{})
	if err != nil {
		err = mapRepoError(err)
		return
	}
	facts := make([]stats.EnrollmentFact, 0, len(enrollments))
	for _, e := range enrollments {
		facts = append(facts, stats.EnrollmentFact{CourseID: e.CourseID, Status: stats.EnrollmentStatus(e.Status)})
	}

	dashboard = stats.BuildDashboard(trainerIDs, groupStats, facts, s.cfg.Policy)
	s.cache.Store(dashboardCacheKey, dashboard)
	logger.InfoContext(ctx, "dashboard built",
		"groups", len(groups),
		"alerts", len(dashboard.Alerts),
	)
	return
}

// courseRecords loads the records of a course keyed by scope, memoised in seen when given.
func (s *StatsService) courseRecords(ctx context.Context, courseID string, seen map[string]map[string]*attendance.Record) (map[string]*attendance.Record, error) {
	if records, ok := seen[courseID]; ok {
		return records, nil
	}
	list, err := s.store.ListAttendance(ctx, persistence.AttendanceFilter{CourseID: courseID})
	if err != nil {
		return nil, mapRepoError(err)
	}
	records := make(map[string]*attendance.Record, len(list))
	for _, rec := range list {
		records[rec.Scope.Key()] = rec
	}
	if seen != nil {
		seen[courseID] = records
	}
	return records, nil
}

func (s *StatsService) groupInput(ctx context.Context, group persistence.Group, records map[string]*attendance.Record) (stats.GroupInput, error) {
	sessions, err := s.store.ListSessions(ctx, persistence.SessionFilter{GroupID: group.ID})
	if err != nil {
		return stats.GroupInput{}, mapRepoError(err)
	}
	enrollments, err := s.store.ListEnrollments(ctx, persistence.EnrollmentFilter{GroupID: group.ID})
	if err != nil {
		return stats.GroupInput{}, mapRepoError(err)
	}
	return stats.GroupInput{
		GroupID:   group.ID,
		CourseID:  group.CourseID,
		TrainerID: group.TrainerID,
		Active:    group.Status == persistence.GroupActive,
		Roster:    activeRoster(enrollments),
		Sessions:  sessions,
		Records:   records,
		Location:  s.cfg.Location,
	}, nil
}
