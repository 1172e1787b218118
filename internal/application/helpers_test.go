package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/persistence/memory"
)

var (
	trainer = Principal{TrainerID: "trainer-1"}
	other   = Principal{TrainerID: "trainer-2"}
	admin   = Principal{TrainerID: "admin-1", IsAdmin: true}
)

// tuesday is 2024-03-05 08:00 UTC.
var tuesday = time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type testEnv struct {
	store      *memory.Storage
	clock      *testClock
	groups     *GroupService
	sessions   *SessionService
	attendance *AttendanceService
	calendar   *CalendarService
	stats      *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	clock := &testClock{now: tuesday}
	var (
		mu sync.Mutex
		n  int
	)
	cfg := ServiceConfig{
		IDGenerator: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Now:           clock.Now,
		Location:      time.UTC,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		CreateRetries: 10,
	}
	statsService := NewStatsService(store, cfg)
	cfg.Invalidator = statsService

	return &testEnv{
		store:      store,
		clock:      clock,
		groups:     NewGroupService(store, cfg),
		sessions:   NewSessionService(store, cfg),
		attendance: NewAttendanceService(store, cfg),
		calendar:   NewCalendarService(store, cfg),
		stats:      statsService,
	}
}

var monWed = []PatternEntryInput{
	{Weekday: "monday", StartTime: "09:00", EndTime: "11:00", Location: "Room A"},
	{Weekday: "wednesday", StartTime: "09:00", EndTime: "11:00", Location: "Room B"},
}

func (e *testEnv) createGroup(t *testing.T, principal Principal, courseID string, pattern []PatternEntryInput) persistence.Group {
	t.Helper()
	group, err := e.groups.CreateGroup(context.Background(), CreateGroupParams{
		Principal:     principal,
		CourseID:      courseID,
		Name:          "Group " + courseID,
		WeeklyPattern: pattern,
		StartDate:     "2024-03-01",
		EndDate:       "2024-06-30",
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group
}

func (e *testEnv) createSession(t *testing.T, principal Principal, groupID string) SessionView {
	t.Helper()
	view, err := e.sessions.CreateSession(context.Background(), CreateSessionParams{
		Principal: principal,
		GroupID:   groupID,
		Title:     "Lesson",
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return view
}

func (e *testEnv) enroll(t *testing.T, principal Principal, groupID string, students ...string) {
	t.Helper()
	for _, student := range students {
		if _, err := e.groups.EnrollStudent(context.Background(), EnrollStudentParams{
			Principal: principal,
			GroupID:   groupID,
			StudentID: student,
		}); err != nil {
			t.Fatalf("EnrollStudent(%s) failed: %v", student, err)
		}
	}
}

func date(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}
