package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/example/trainingcenter/internal/recurrence"
)

func newSession(status Status) Session {
	return Session{
		ID:            "session-1",
		GroupID:       "group-1",
		Ordinal:       1,
		Title:         "Intro",
		ScheduledDate: time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC),
		StartTime:     recurrence.MustParseClock("09:00"),
		EndTime:       recurrence.MustParseClock("11:00"),
		Status:        status,
	}
}

func TestComputeStatus(t *testing.T) {
	t.Parallel()

	before := time.Date(2024, time.March, 6, 8, 59, 0, 0, time.UTC)
	inside := time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)
	atEnd := time.Date(2024, time.March, 6, 11, 0, 0, 0, time.UTC)
	nextDay := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		stored Status
		now    time.Time
		want   Status
	}{
		{name: "scheduled before window", stored: StatusScheduled, now: before, want: StatusScheduled},
		{name: "scheduled inside window", stored: StatusScheduled, now: inside, want: StatusInProgress},
		{name: "scheduled at end instant", stored: StatusScheduled, now: atEnd, want: StatusCompleted},
		{name: "forgotten session shows completed next day", stored: StatusScheduled, now: nextDay, want: StatusCompleted},
		{name: "started early still shows scheduled", stored: StatusInProgress, now: before, want: StatusScheduled},
		{name: "started and overrun shows completed", stored: StatusInProgress, now: nextDay, want: StatusCompleted},
		{name: "cancelled before window", stored: StatusCancelled, now: before, want: StatusCancelled},
		{name: "cancelled inside window", stored: StatusCancelled, now: inside, want: StatusCancelled},
		{name: "cancelled after window", stored: StatusCancelled, now: nextDay, want: StatusCancelled},
		{name: "ended early follows the window", stored: StatusCompleted, now: inside, want: StatusInProgress},
		{name: "ended shows completed after window", stored: StatusCompleted, now: atEnd, want: StatusCompleted},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeStatus(newSession(tc.stored), tc.now, time.UTC)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestComputeStatusDoesNotMutate(t *testing.T) {
	t.Parallel()

	s := newSession(StatusScheduled)
	_ = ComputeStatus(s, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), time.UTC)
	if s.Status != StatusScheduled {
		t.Fatalf("stored status changed to %s", s.Status)
	}
}

func TestExplicitTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 6, 9, 5, 0, 0, time.UTC)

	t.Run("start then end", func(t *testing.T) {
		t.Parallel()
		s := newSession(StatusScheduled)
		if err := s.Start(now); err != nil {
			t.Fatalf("start: %v", err)
		}
		if s.Status != StatusInProgress || s.ActualStart == nil || !s.ActualStart.Equal(now) {
			t.Fatalf("unexpected session after start: %+v", s)
		}
		end := now.Add(2 * time.Hour)
		if err := s.End(end); err != nil {
			t.Fatalf("end: %v", err)
		}
		if s.Status != StatusCompleted || s.ActualEnd == nil || !s.ActualEnd.Equal(end) {
			t.Fatalf("unexpected session after end: %+v", s)
		}
	})

	t.Run("end requires in progress", func(t *testing.T) {
		t.Parallel()
		s := newSession(StatusScheduled)
		if err := s.End(now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if s.ActualEnd != nil {
			t.Fatal("actual end must not be recorded on failure")
		}
	})

	t.Run("cancel completed fails", func(t *testing.T) {
		t.Parallel()
		s := newSession(StatusCompleted)
		if err := s.Cancel("weather", now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if s.Status != StatusCompleted {
			t.Fatalf("status changed to %s", s.Status)
		}
	})

	t.Run("cancel records reason", func(t *testing.T) {
		t.Parallel()
		s := newSession(StatusInProgress)
		if err := s.Cancel("  trainer ill ", now); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if s.Status != StatusCancelled || s.CancellationReason != "trainer ill" {
			t.Fatalf("unexpected session after cancel: %+v", s)
		}
	})

	t.Run("cancelled session cannot restart", func(t *testing.T) {
		t.Parallel()
		s := newSession(StatusCancelled)
		if err := s.Start(now); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestReachableStates(t *testing.T) {
	t.Parallel()

	expect := map[Status][]Status{
		StatusScheduled:  {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  nil,
		StatusCancelled:  nil,
	}
	for from, want := range expect {
		got := Reachable(from)
		if len(got) != len(want) {
			t.Fatalf("%s: expected %v, got %v", from, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", from, want, got)
			}
		}
	}
}

func TestApplyContent(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	title := " Loops "
	plan := "for, range"

	s := newSession(StatusScheduled)
	if err := s.ApplyContent(ContentUpdate{Title: &title, LessonPlan: &plan}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title != "Loops" || s.LessonPlan != plan || !s.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected session: %+v", s)
	}

	done := newSession(StatusCompleted)
	if err := done.ApplyContent(ContentUpdate{Title: &title}, now); !errors.Is(err, ErrImmutableRecord) {
		t.Fatalf("expected ErrImmutableRecord, got %v", err)
	}
	if done.Title != "Intro" {
		t.Fatalf("completed session title changed to %q", done.Title)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if s, err := ParseStatus("in_progress"); err != nil || s != StatusInProgress {
		t.Fatalf("unexpected result %q, %v", s, err)
	}
	if _, err := ParseStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
