package attendance

import (
	"testing"
	"time"
)

func recordWith(t *testing.T, day int, marks map[string]Status) *Record {
	t.Helper()
	now := time.Date(2024, time.March, day, 9, 0, 0, 0, time.UTC)
	scope, err := NewScope("course-1", now, time.UTC)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	rec := NewRecord("record", scope, now)
	for student, status := range marks {
		if _, err := rec.Mark(student, status, "trainer-1", "", now); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}
	return rec
}

func TestSummarizeStudent(t *testing.T) {
	t.Parallel()

	records := []*Record{
		recordWith(t, 4, map[string]Status{"s1": StatusPresent}),
		recordWith(t, 6, map[string]Status{"s1": StatusLate}),
		recordWith(t, 11, map[string]Status{"s1": StatusExcused}),
		recordWith(t, 13, map[string]Status{"s2": StatusPresent}),
		recordWith(t, 18, map[string]Status{"s1": StatusAbsent}),
		recordWith(t, 20, map[string]Status{"s1": StatusPresent}),
	}

	got := SummarizeStudent(records, "s1")
	if got.TotalSessions != 6 {
		t.Fatalf("expected 6 sessions, got %d", got.TotalSessions)
	}
	want := Tally{Present: 2, Late: 1, Excused: 1, Absent: 2}
	if got.Tally != want {
		t.Fatalf("expected %+v, got %+v", want, got.Tally)
	}
	// (2+1+1)/6 = 66.67
	if got.Percentage != 67 {
		t.Fatalf("expected 67%%, got %d", got.Percentage)
	}
}

func TestSummarizeSession(t *testing.T) {
	t.Parallel()

	rec := recordWith(t, 6, map[string]Status{
		"s1": StatusPresent,
		"s2": StatusLate,
		"s3": StatusExcused,
	})
	got := SummarizeSession(rec, []string{"s1", "s2", "s3", "s4"})

	if got.TotalStudents != 4 {
		t.Fatalf("expected 4 students, got %d", got.TotalStudents)
	}
	want := Tally{Present: 1, Late: 1, Excused: 1, Absent: 1}
	if got.Tally != want {
		t.Fatalf("expected %+v, got %+v", want, got.Tally)
	}
	// excused is not counted towards the session rate
	if got.AttendanceRate != 50 {
		t.Fatalf("expected 50%%, got %d", got.AttendanceRate)
	}
}

func TestSummaryBounds(t *testing.T) {
	t.Parallel()

	if s := SummarizeStudent(nil, "s1"); s.Percentage != 0 || s.TotalSessions != 0 {
		t.Fatalf("expected empty student summary, got %+v", s)
	}
	if s := SummarizeSession(nil, nil); s.AttendanceRate != 0 || s.TotalStudents != 0 {
		t.Fatalf("expected empty session summary, got %+v", s)
	}
	if s := SummarizeSession(nil, []string{"s1", "s2"}); s.Absent != 2 || s.AttendanceRate != 0 {
		t.Fatalf("expected all-absent summary, got %+v", s)
	}

	for total := 0; total < 20; total++ {
		for part := -1; part <= total+1; part++ {
			v := Percent(part, total)
			if v < 0 || v > 100 {
				t.Fatalf("Percent(%d, %d) = %d out of range", part, total, v)
			}
		}
	}
	full := recordWith(t, 6, map[string]Status{"s1": StatusPresent, "s2": StatusLate})
	if s := SummarizeSession(full, []string{"s1"}); s.AttendanceRate != 100 {
		t.Fatalf("expected 100%%, got %d", s.AttendanceRate)
	}
}
