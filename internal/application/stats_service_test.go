package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/trainingcenter/internal/stats"
)

func TestStatsServiceGroupStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	env.enroll(t, trainer, group.ID, "s1", "s2")
	first := env.createSession(t, trainer, group.ID)
	env.createSession(t, trainer, group.ID)

	if _, err := env.attendance.MarkAttendance(ctx, MarkAttendanceParams{
		Principal: trainer,
		SessionID: first.ID,
		Marks:     []AttendanceMark{{StudentID: "s1", Status: "present"}},
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	got, err := env.stats.GroupStats(ctx, trainer, group.ID)
	if err != nil {
		t.Fatalf("GroupStats failed: %v", err)
	}
	if got.TotalSessions != 2 || got.SessionsWithData != 1 || got.AverageAttendance != 50 {
		t.Fatalf("unexpected group stats %+v", got)
	}

	if _, err := env.stats.GroupStats(ctx, other, group.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsServiceDashboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	low := env.createGroup(t, trainer, "course-1", monWed)
	env.enroll(t, trainer, low.ID, "s1", "s2", "s3")
	lowSession := env.createSession(t, trainer, low.ID)
	good := env.createGroup(t, other, "course-2", monWed)
	env.enroll(t, other, good.ID, "s4")
	goodSession := env.createSession(t, other, good.ID)
	env.createGroup(t, Principal{TrainerID: "trainer-3"}, "course-2", nil)

	if _, err := env.attendance.MarkAttendance(ctx, MarkAttendanceParams{
		Principal: trainer,
		SessionID: lowSession.ID,
		Marks:     []AttendanceMark{{StudentID: "s1", Status: "present"}},
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if _, err := env.attendance.MarkAttendance(ctx, MarkAttendanceParams{
		Principal: other,
		SessionID: goodSession.ID,
		Marks:     []AttendanceMark{{StudentID: "s4", Status: "late"}},
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}

	if _, err := env.stats.Dashboard(ctx, trainer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected dashboard to be admin only, got %v", err)
	}

	dashboard, err := env.stats.Dashboard(ctx, admin)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if len(dashboard.Trainers) != 3 {
		t.Fatalf("expected 3 ranked trainers, got %+v", dashboard.Trainers)
	}
	if dashboard.Trainers[0].TrainerID != other.TrainerID || dashboard.Trainers[0].Score != 100 {
		t.Fatalf("expected %s first with 100, got %+v", other.TrainerID, dashboard.Trainers[0])
	}
	if dashboard.Trainers[2].TrainerID != "trainer-3" || dashboard.Trainers[2].Score != 0 {
		t.Fatalf("expected trainer without data last with 0, got %+v", dashboard.Trainers[2])
	}
	if len(dashboard.Alerts) != 1 || dashboard.Alerts[0].GroupID != low.ID || dashboard.Alerts[0].AverageAttendance != 33 {
		t.Fatalf("unexpected alerts %+v", dashboard.Alerts)
	}
	if len(dashboard.Courses) != 2 || dashboard.Courses[0].CourseID != "course-1" || dashboard.Courses[0].Enrollments != 3 {
		t.Fatalf("unexpected course breakdown %+v", dashboard.Courses)
	}

	// a write invalidates the cached dashboard
	if _, err := env.attendance.MarkAttendance(ctx, MarkAttendanceParams{
		Principal: trainer,
		SessionID: lowSession.ID,
		Marks: []AttendanceMark{
			{StudentID: "s2", Status: "present"},
			{StudentID: "s3", Status: "present"},
		},
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	dashboard, err = env.stats.Dashboard(ctx, admin)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if len(dashboard.Alerts) != 0 {
		t.Fatalf("expected alerts to clear after full attendance, got %+v", dashboard.Alerts)
	}
}

func TestDashboardCacheExpiresAndInvalidates(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	cache := newDashboardCache(time.Second, 2, func() time.Time { return current })

	dashboard := stats.Dashboard{Alerts: []stats.Alert{{GroupID: "g1", AverageAttendance: 40}}}
	cache.Store("key", dashboard)
	got, ok := cache.Get("key")
	if !ok || len(got.Alerts) != 1 {
		t.Fatalf("expected cache hit before expiry, got %+v", got)
	}
	// returned values are copies
	got.Alerts[0].GroupID = "mutated"
	if again, _ := cache.Get("key"); again.Alerts[0].GroupID != "g1" {
		t.Fatalf("cached dashboard was mutated through a returned copy")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}

	cache.Store("key", dashboard)
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}
