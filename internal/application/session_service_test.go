package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/persistence/memory"
	"github.com/example/trainingcenter/internal/recurrence"
)

func TestSessionServiceCreateFromPattern(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)

	want := []struct {
		date     time.Time
		location string
	}{
		{date(6), "Room B"},
		{date(11), "Room A"},
		{date(13), "Room B"},
	}
	for i, w := range want {
		view := env.createSession(t, trainer, group.ID)
		if view.Ordinal != i+1 {
			t.Fatalf("session %d: expected ordinal %d, got %d", i, i+1, view.Ordinal)
		}
		if !view.ScheduledDate.Equal(w.date) || view.Location != w.location {
			t.Fatalf("session %d: expected %v at %s, got %v at %s", i, w.date, w.location, view.ScheduledDate, view.Location)
		}
		if view.StartTime.String() != "09:00" || view.EndTime.String() != "11:00" {
			t.Fatalf("session %d: unexpected window %s-%s", i, view.StartTime, view.EndTime)
		}
		if view.DerivedStatus != lifecycle.StatusScheduled || view.TrainerID != trainer.TrainerID || view.CourseID != "course-1" {
			t.Fatalf("session %d: unexpected view %+v", i, view)
		}
	}

	stored, err := env.store.GetGroup(context.Background(), group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.SessionsCreatedCount != 3 {
		t.Fatalf("expected counter 3, got %d", stored.SessionsCreatedCount)
	}
}

func TestSessionServiceCreateManual(t *testing.T) {
	t.Parallel()

	t.Run("explicit date overrides the pattern", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		group := env.createGroup(t, trainer, "course-1", monWed)

		view, err := env.sessions.CreateSession(context.Background(), CreateSessionParams{
			Principal:     trainer,
			GroupID:       group.ID,
			Title:         "Make-up lesson",
			ScheduledDate: "2024-03-20",
			StartTime:     "14:00",
			EndTime:       "15:30",
			Location:      "Lab",
		})
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if !view.ScheduledDate.Equal(date(20)) || view.Location != "Lab" || view.Ordinal != 1 {
			t.Fatalf("unexpected session %+v", view.Session)
		}
		if view.DurationMinutes() != 90 {
			t.Fatalf("expected 90 minutes, got %d", view.DurationMinutes())
		}
	})

	t.Run("explicit date requires a valid window", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		group := env.createGroup(t, trainer, "course-1", nil)

		_, err := env.sessions.CreateSession(context.Background(), CreateSessionParams{
			Principal:     trainer,
			GroupID:       group.ID,
			Title:         "Lesson",
			ScheduledDate: "2024-03-20",
			StartTime:     "9:00",
			EndTime:       "08:00",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["startTime"]; !ok {
			t.Fatalf("expected startTime error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("no pattern and no date is a distinct outcome", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		group := env.createGroup(t, trainer, "course-1", nil)

		_, err := env.sessions.CreateSession(context.Background(), CreateSessionParams{
			Principal: trainer,
			GroupID:   group.ID,
			Title:     "Lesson",
		})
		if !errors.Is(err, ErrNoPattern) || !errors.Is(err, recurrence.ErrNoPattern) {
			t.Fatalf("expected ErrNoPattern, got %v", err)
		}
	})
}

func TestSessionServiceCreateRejects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)

	cases := []struct {
		name   string
		params CreateSessionParams
		check  func(error) bool
	}{
		{
			name:   "unauthenticated",
			params: CreateSessionParams{GroupID: group.ID, Title: "x"},
			check:  func(err error) bool { return errors.Is(err, ErrUnauthorized) },
		},
		{
			name:   "other trainer's group",
			params: CreateSessionParams{Principal: other, GroupID: group.ID, Title: "x"},
			check:  func(err error) bool { return errors.Is(err, ErrNotFound) },
		},
		{
			name:   "missing title",
			params: CreateSessionParams{Principal: trainer, GroupID: group.ID},
			check: func(err error) bool {
				var vErr *ValidationError
				return errors.As(err, &vErr) && vErr.FieldErrors["title"] != ""
			},
		},
		{
			name:   "unknown group",
			params: CreateSessionParams{Principal: trainer, GroupID: "missing", Title: "x"},
			check:  func(err error) bool { return errors.Is(err, ErrNotFound) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.sessions.CreateSession(context.Background(), tc.params)
			if !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	t.Run("inactive group", func(t *testing.T) {
		if _, err := env.groups.UpdateGroupStatus(context.Background(), UpdateGroupStatusParams{
			Principal: trainer, GroupID: group.ID, Status: "archived",
		}); err != nil {
			t.Fatalf("UpdateGroupStatus failed: %v", err)
		}
		_, err := env.sessions.CreateSession(context.Background(), CreateSessionParams{Principal: trainer, GroupID: group.ID, Title: "x"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestSessionServiceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	env.clock.Set(time.Date(2024, time.March, 6, 8, 55, 0, 0, time.UTC))
	started, err := env.sessions.StartSession(ctx, trainer, session.ID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if started.Status != lifecycle.StatusInProgress || started.ActualStart == nil {
		t.Fatalf("expected stored in_progress with actual start, got %+v", started.Session)
	}
	if started.DerivedStatus != lifecycle.StatusScheduled {
		t.Fatalf("expected an early start to keep showing the window status, got %s", started.DerivedStatus)
	}

	if _, err := env.sessions.StartSession(ctx, trainer, session.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second start, got %v", err)
	}

	env.clock.Set(time.Date(2024, time.March, 6, 11, 0, 0, 0, time.UTC))
	ended, err := env.sessions.EndSession(ctx, trainer, session.ID)
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if ended.Status != lifecycle.StatusCompleted || ended.ActualEnd == nil {
		t.Fatalf("expected completed with actual end, got %+v", ended.Session)
	}

	title := "Renamed"
	_, err = env.sessions.UpdateSession(ctx, UpdateSessionParams{
		Principal: trainer,
		SessionID: session.ID,
		Update:    lifecycle.ContentUpdate{Title: &title},
	})
	if !errors.Is(err, ErrImmutableRecord) {
		t.Fatalf("expected ErrImmutableRecord, got %v", err)
	}

	err = env.sessions.DeleteSession(ctx, DeleteSessionParams{Principal: trainer, SessionID: session.ID, Reason: "late"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling a completed session, got %v", err)
	}

	if _, err := env.sessions.StartSession(ctx, other, session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other trainer to get ErrNotFound, got %v", err)
	}
}

func TestSessionServiceUpdateContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	plan := "Chapter 3"
	updated, err := env.sessions.UpdateSession(ctx, UpdateSessionParams{
		Principal: trainer,
		SessionID: session.ID,
		Update:    lifecycle.ContentUpdate{LessonPlan: &plan},
	})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if updated.LessonPlan != plan || updated.Title != "Lesson" {
		t.Fatalf("unexpected session after update: %+v", updated.Session)
	}

	var vErr *ValidationError
	if _, err := env.sessions.UpdateSession(ctx, UpdateSessionParams{Principal: trainer, SessionID: session.ID}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
}

func TestSessionServiceSoftDeleteIsSticky(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	if err := env.sessions.DeleteSession(ctx, DeleteSessionParams{
		Principal: trainer,
		SessionID: session.ID,
		Reason:    " trainer ill ",
	}); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	// inside the original window
	env.clock.Set(time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC))
	view, err := env.sessions.GetSession(ctx, trainer, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if view.DerivedStatus != lifecycle.StatusCancelled || view.CancellationReason != "trainer ill" {
		t.Fatalf("expected sticky cancellation, got %s (%q)", view.DerivedStatus, view.CancellationReason)
	}

	stored, err := env.store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.SessionsCreatedCount != 1 {
		t.Fatalf("soft delete must keep the counter, got %d", stored.SessionsCreatedCount)
	}
}

func TestSessionServiceHardDeleteCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	if _, err := env.attendance.MarkAttendance(ctx, MarkAttendanceParams{
		Principal: trainer,
		SessionID: session.ID,
		Marks:     []AttendanceMark{{StudentID: "s1", Status: "present"}},
	}); err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if _, err := env.sessions.EvaluateSession(ctx, EvaluateSessionParams{
		Principal: trainer,
		SessionID: session.ID,
		Rating:    4,
	}); err != nil {
		t.Fatalf("EvaluateSession failed: %v", err)
	}

	if err := env.sessions.DeleteSession(ctx, DeleteSessionParams{Principal: trainer, SessionID: session.ID, Permanent: true}); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, err := env.sessions.GetSession(ctx, trainer, session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after hard delete, got %v", err)
	}
	scope, _ := attendance.NewScope("course-1", date(6), time.UTC)
	if _, err := env.store.GetAttendance(ctx, scope); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected attendance record to be removed, got %v", err)
	}
	if _, err := env.store.GetEvaluation(ctx, session.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected evaluation to be removed, got %v", err)
	}
	stored, err := env.store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.SessionsCreatedCount != 0 {
		t.Fatalf("expected counter 0, got %d", stored.SessionsCreatedCount)
	}
}

func TestSessionServiceListUsesDerivedStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	first := env.createSession(t, trainer, group.ID)
	env.createSession(t, trainer, group.ID)
	otherGroup := env.createGroup(t, other, "course-2", monWed)
	env.createSession(t, other, otherGroup.ID)

	env.clock.Set(time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC))
	views, err := env.sessions.ListSessions(ctx, ListSessionsParams{Principal: trainer, Status: "in_progress"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != first.ID {
		t.Fatalf("expected only the first session in progress, got %+v", views)
	}

	// the trainer never started or ended it, yet it shows as completed afterwards
	env.clock.Set(time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC))
	views, err = env.sessions.ListSessions(ctx, ListSessionsParams{Principal: trainer, GroupID: group.ID})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 2 || views[0].DerivedStatus != lifecycle.StatusCompleted || views[0].Status != lifecycle.StatusScheduled {
		t.Fatalf("unexpected derived listing: %+v", views)
	}

	views, err = env.sessions.ListSessions(ctx, ListSessionsParams{Principal: admin, StartDate: "2024-03-06", EndDate: "2024-03-06"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected admin to see both trainers' sessions on 03-06, got %d", len(views))
	}

	var vErr *ValidationError
	if _, err := env.sessions.ListSessions(ctx, ListSessionsParams{Principal: trainer, Status: "done"}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestSessionServiceConcurrentCreationsGetDistinctOrdinals(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)

	const workers = 8
	var wg sync.WaitGroup
	ordinals := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := env.sessions.CreateSession(context.Background(), CreateSessionParams{
				Principal: trainer,
				GroupID:   group.ID,
				Title:     "Lesson",
			})
			ordinals[i], errs[i] = view.Ordinal, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", i, err)
		}
	}
	sort.Ints(ordinals)
	for i, ordinal := range ordinals {
		if ordinal != i+1 {
			t.Fatalf("expected ordinals 1..%d, got %v", workers, ordinals)
		}
	}
}

// racingStore lets another writer win the counter race before the first append.
type racingStore struct {
	*memory.Storage
	mu       sync.Mutex
	races    int
	rivalSeq int
}

func (r *racingStore) AppendSession(ctx context.Context, session lifecycle.Session, expectedCount int) error {
	r.mu.Lock()
	if r.races > 0 {
		r.races--
		r.rivalSeq++
		rival := session
		rival.ID = session.ID + "-rival-" + string(rune('a'+r.rivalSeq))
		r.mu.Unlock()
		if err := r.Storage.AppendSession(ctx, rival, expectedCount); err != nil {
			return err
		}
	} else {
		r.mu.Unlock()
	}
	return r.Storage.AppendSession(ctx, session, expectedCount)
}

func TestSessionServiceRetriesLostCounterRace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &racingStore{Storage: memory.New(), races: 1}
	group := persistence.Group{
		ID:            "group-1",
		CourseID:      "course-1",
		TrainerID:     trainer.TrainerID,
		WeeklyPattern: []recurrence.Entry{{Weekday: time.Monday, Start: recurrence.MustParseClock("09:00"), End: recurrence.MustParseClock("10:00")}},
		StartDate:     date(1),
		EndDate:       date(30),
		Status:        persistence.GroupActive,
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	cfg := ServiceConfig{
		IDGenerator:   func() string { return "session-1" },
		Now:           func() time.Time { return tuesday },
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		CreateRetries: 2,
	}
	view, err := NewSessionService(store, cfg).CreateSession(ctx, CreateSessionParams{Principal: trainer, GroupID: group.ID, Title: "Lesson"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if view.Ordinal != 2 {
		t.Fatalf("expected the retried session to take ordinal 2, got %d", view.Ordinal)
	}

	t.Run("gives up after the retry budget", func(t *testing.T) {
		store.races = 5
		cfg.CreateRetries = 1
		cfg.IDGenerator = func() string { return "session-2" }
		_, err := NewSessionService(store, cfg).CreateSession(ctx, CreateSessionParams{Principal: trainer, GroupID: group.ID, Title: "Lesson"})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

// gatedStore pauses the first read of a session until released.
type gatedStore struct {
	*memory.Storage
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetSession(ctx context.Context, id string) (lifecycle.Session, error) {
	session, err := g.Storage.GetSession(ctx, id)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return session, err
}

func TestSessionServiceStartLosesToConcurrentCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	gated := &gatedStore{Storage: env.store, read: make(chan struct{}), release: make(chan struct{})}
	starter := NewSessionService(gated, env.sessions.cfg)

	done := make(chan error, 1)
	go func() {
		_, err := starter.StartSession(ctx, trainer, session.ID)
		done <- err
	}()

	<-gated.read
	if err := env.sessions.DeleteSession(ctx, DeleteSessionParams{Principal: trainer, SessionID: session.ID, Reason: "room flooded"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	close(gated.release)

	if err := <-done; !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for the stale start, got %v", err)
	}
	stored, err := env.store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.Status != lifecycle.StatusCancelled || stored.CancellationReason != "room flooded" || stored.ActualStart != nil {
		t.Fatalf("cancellation was overwritten: %+v", stored)
	}
}

func TestSessionServiceEvaluate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	group := env.createGroup(t, trainer, "course-1", monWed)
	session := env.createSession(t, trainer, group.ID)

	var vErr *ValidationError
	if _, err := env.sessions.EvaluateSession(ctx, EvaluateSessionParams{Principal: trainer, SessionID: session.ID, Rating: 6}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for rating 6, got %v", err)
	}

	first, err := env.sessions.EvaluateSession(ctx, EvaluateSessionParams{Principal: trainer, SessionID: session.ID, Rating: 3, Comment: "ok"})
	if err != nil {
		t.Fatalf("EvaluateSession failed: %v", err)
	}
	env.clock.Set(tuesday.Add(time.Hour))
	second, err := env.sessions.EvaluateSession(ctx, EvaluateSessionParams{Principal: trainer, SessionID: session.ID, Rating: 5})
	if err != nil {
		t.Fatalf("EvaluateSession failed: %v", err)
	}
	if second.Rating != 5 || !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("expected evaluation to be replaced in place, got %+v", second)
	}
}
