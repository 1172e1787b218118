package recurrence

import (
	"errors"
	"testing"
	"time"
)

var jst = time.FixedZone("JST", 9*60*60)

func entry(day time.Weekday, start, end, location string) Entry {
	return Entry{Weekday: day, Start: MustParseClock(start), End: MustParseClock(end), Location: location}
}

func date(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func TestResolver_NextSlot(t *testing.T) {
	t.Parallel()

	mondayWednesday := []Entry{
		entry(time.Monday, "09:00", "11:00", "Room A"),
		entry(time.Wednesday, "09:00", "11:00", "Room B"),
	}

	tests := []struct {
		name      string
		pattern   []Entry
		created   int
		now       time.Time
		wantDate  time.Time
		wantIndex int
		wantStart string
		wantEnd   string
	}{
		{
			name:      "first session of a fresh group lands on the next pattern day",
			pattern:   mondayWednesday,
			created:   0,
			now:       time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 6, time.UTC),
			wantIndex: 1,
			wantStart: "09:00",
			wantEnd:   "11:00",
		},
		{
			name:      "completed cycle advances to the following week",
			pattern:   mondayWednesday,
			created:   1,
			now:       time.Date(2024, time.March, 7, 8, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 11, time.UTC),
			wantIndex: 0,
			wantStart: "09:00",
			wantEnd:   "11:00",
		},
		{
			name:      "single entry pattern advances one week per session",
			pattern:   []Entry{entry(time.Thursday, "18:30", "20:00", "Lab")},
			created:   2,
			now:       time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 21, time.UTC),
			wantIndex: 0,
			wantStart: "18:30",
			wantEnd:   "20:00",
		},
		{
			name:      "single entry pattern first meets this week",
			pattern:   []Entry{entry(time.Wednesday, "18:30", "20:00", "Lab")},
			created:   0,
			now:       time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 6, time.UTC),
			wantIndex: 0,
			wantStart: "18:30",
			wantEnd:   "20:00",
		},
		{
			name:      "single entry pattern already past this week moves to the next",
			pattern:   []Entry{entry(time.Monday, "18:30", "20:00", "Lab")},
			created:   0,
			now:       time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 11, time.UTC),
			wantIndex: 0,
			wantStart: "18:30",
			wantEnd:   "20:00",
		},
		{
			name:      "candidate earlier today is kept",
			pattern:   []Entry{entry(time.Sunday, "07:00", "08:00", ""), entry(time.Tuesday, "07:00", "08:00", "")},
			created:   0,
			now:       time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC),
			wantDate:  date(2024, time.March, 5, time.UTC),
			wantIndex: 1,
			wantStart: "07:00",
			wantEnd:   "08:00",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			slot, err := NewResolver(time.UTC).NextSlot(tc.pattern, tc.created, tc.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slot.Date.Equal(tc.wantDate) {
				t.Fatalf("expected date %s, got %s", tc.wantDate.Format(time.DateOnly), slot.Date.Format(time.DateOnly))
			}
			if slot.PatternIndex != tc.wantIndex {
				t.Fatalf("expected pattern index %d, got %d", tc.wantIndex, slot.PatternIndex)
			}
			if slot.Ordinal != tc.created+1 {
				t.Fatalf("expected ordinal %d, got %d", tc.created+1, slot.Ordinal)
			}
			if slot.Start.String() != tc.wantStart || slot.End.String() != tc.wantEnd {
				t.Fatalf("expected %s-%s, got %s-%s", tc.wantStart, tc.wantEnd, slot.Start, slot.End)
			}
		})
	}
}

func TestResolver_NextSlotWithoutPattern(t *testing.T) {
	t.Parallel()

	_, err := ResolveNextSlot(nil, 0, time.Now(), time.UTC)
	if !errors.Is(err, ErrNoPattern) {
		t.Fatalf("expected ErrNoPattern, got %v", err)
	}
	if _, err := Upcoming([]Entry{}, 0, 3, time.Now(), time.UTC); !errors.Is(err, ErrNoPattern) {
		t.Fatalf("expected ErrNoPattern from Upcoming, got %v", err)
	}
}

func TestResolver_RoundRobin(t *testing.T) {
	t.Parallel()

	pattern := []Entry{
		entry(time.Monday, "09:00", "10:00", ""),
		entry(time.Wednesday, "09:00", "10:00", ""),
		entry(time.Friday, "09:00", "10:00", ""),
	}
	resolver := NewResolver(time.UTC)
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)

	for created := 0; created < 12; created++ {
		slot, err := resolver.NextSlot(pattern, created, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := (created + 1) % len(pattern)
		if slot.PatternIndex != want {
			t.Fatalf("created=%d: expected index %d, got %d", created, want, slot.PatternIndex)
		}
		if slot.Date.Weekday() != pattern[want].Weekday {
			t.Fatalf("created=%d: expected %s, got %s", created, pattern[want].Weekday, slot.Date.Weekday())
		}
	}
}

func TestResolver_NeverReturnsPastDate(t *testing.T) {
	t.Parallel()

	pattern := []Entry{
		entry(time.Sunday, "08:00", "09:00", ""),
		entry(time.Tuesday, "13:00", "14:00", ""),
		entry(time.Saturday, "15:00", "16:00", ""),
	}
	resolver := NewResolver(jst)
	base := time.Date(2024, time.February, 25, 0, 0, 0, 0, jst)

	for hours := 0; hours < 24*21; hours += 5 {
		now := base.Add(time.Duration(hours) * time.Hour)
		today := StartOfDay(now, jst)
		for created := 0; created < 9; created++ {
			slot, err := resolver.NextSlot(pattern, created, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if slot.Date.Before(today) {
				t.Fatalf("now=%s created=%d: slot %s is in the past", now, created, slot.Date.Format(time.DateOnly))
			}
		}
	}
}

func TestResolver_UsesOperationalLocation(t *testing.T) {
	t.Parallel()

	pattern := []Entry{
		entry(time.Monday, "09:00", "10:00", ""),
		entry(time.Tuesday, "09:00", "10:00", ""),
	}
	// 2024-03-05 23:30 UTC is Wednesday morning in JST.
	now := time.Date(2024, time.March, 5, 23, 30, 0, 0, time.UTC)

	utcSlot, err := NewResolver(time.UTC).NextSlot(pattern, 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := utcSlot.Date.Format(time.DateOnly); got != "2024-03-05" {
		t.Fatalf("expected 2024-03-05 in UTC, got %s", got)
	}

	jstSlot, err := NewResolver(jst).NextSlot(pattern, 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := jstSlot.Date.Format(time.DateOnly); got != "2024-03-12" {
		t.Fatalf("expected 2024-03-12 in JST, got %s", got)
	}
	if jstSlot.StartsAt().Location() != jst {
		t.Fatalf("expected slot instants in JST")
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()

	pattern := []Entry{
		entry(time.Monday, "09:00", "11:00", "Room A"),
		entry(time.Wednesday, "14:00", "15:30", "Room B"),
	}
	now := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	slots, err := Upcoming(pattern, 0, 4, now, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-03-06", "2024-03-11", "2024-03-13", "2024-03-18"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, slot := range slots {
		if got := slot.Date.Format(time.DateOnly); got != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], got)
		}
		if slot.Ordinal != i+1 {
			t.Fatalf("slot %d: expected ordinal %d, got %d", i, i+1, slot.Ordinal)
		}
	}
	if slots[0].DurationMinutes() != 90 {
		t.Fatalf("expected 90 minute slot, got %d", slots[0].DurationMinutes())
	}

	none, err := Upcoming(pattern, 0, 0, now, time.UTC)
	if err != nil || none != nil {
		t.Fatalf("expected nil result for zero count, got %v, %v", none, err)
	}
}
