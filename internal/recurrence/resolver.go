package recurrence

import (
	"errors"
	"time"
)

// ErrNoPattern signals that a group has no weekly pattern to resolve against.
// Callers are expected to fall back to an explicitly supplied date.
var ErrNoPattern = errors.New("recurrence: no weekly pattern")

// Slot is a concrete calendar occurrence selected from a weekly pattern.
type Slot struct {
	Ordinal      int
	PatternIndex int
	Date         time.Time
	Start        Clock
	End          Clock
	Location     string
}

// StartsAt returns the start instant of the slot.
func (s Slot) StartsAt() time.Time { return s.Start.On(s.Date, s.Date.Location()) }

// EndsAt returns the end instant of the slot.
func (s Slot) EndsAt() time.Time { return s.End.On(s.Date, s.Date.Location()) }

// DurationMinutes derives the slot length from its start and end clocks.
func (s Slot) DurationMinutes() int { return int(s.End - s.Start) }

// Resolver maps a weekly pattern and a group's session counter to calendar slots.
type Resolver struct {
	location *time.Location
}

// NewResolver constructs a Resolver that evaluates dates in the provided operational location.
// If loc is nil, UTC is used.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{location: loc}
}

// Location returns the operational location used for date arithmetic.
func (r *Resolver) Location() *time.Location {
	if r == nil || r.location == nil {
		return time.UTC
	}
	return r.location
}

// NextSlot resolves the slot for the next session of a group.
//
// The session being created receives ordinal sessionsCreated+1. The ordinal selects the
// pattern entry round-robin (ordinal mod len) and the number of elapsed pattern cycles
// (ordinal div len), counted in whole weeks from the Sunday that starts the week containing
// now. A single-entry pattern has no rotation to skip, so its cycle count is sessionsCreated
// and the first session lands in the current week. A candidate that already lies before
// today is moved forward by exactly one week; the shift is applied once, so the resolver
// must be called once per new session in sequence.
func (r *Resolver) NextSlot(pattern []Entry, sessionsCreated int, now time.Time) (Slot, error) {
	if len(pattern) == 0 {
		return Slot{}, ErrNoPattern
	}
	if sessionsCreated < 0 {
		sessionsCreated = 0
	}

	loc := r.Location()
	ordinal := sessionsCreated + 1
	index := ordinal % len(pattern)
	weekOffset := ordinal / len(pattern)
	if len(pattern) == 1 {
		weekOffset = sessionsCreated
	}
	entry := pattern[index]

	today := StartOfDay(now, loc)
	candidate := StartOfWeek(now, loc).AddDate(0, 0, weekOffset*7+int(entry.Weekday))
	if candidate.Before(today) {
		candidate = candidate.AddDate(0, 0, 7)
	}

	return Slot{
		Ordinal:      ordinal,
		PatternIndex: index,
		Date:         candidate,
		Start:        entry.Start,
		End:          entry.End,
		Location:     entry.Location,
	}, nil
}

// Upcoming previews the next count slots by resolving successive counters against the same now.
func (r *Resolver) Upcoming(pattern []Entry, sessionsCreated, count int, now time.Time) ([]Slot, error) {
	if len(pattern) == 0 {
		return nil, ErrNoPattern
	}
	if count <= 0 {
		return nil, nil
	}
	slots := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		slot, err := r.NextSlot(pattern, sessionsCreated+i, now)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// ResolveNextSlot is a convenience wrapper around Resolver.NextSlot for a single call.
func ResolveNextSlot(pattern []Entry, sessionsCreated int, now time.Time, loc *time.Location) (Slot, error) {
	return NewResolver(loc).NextSlot(pattern, sessionsCreated, now)
}

// Upcoming is a convenience wrapper around Resolver.Upcoming.
func Upcoming(pattern []Entry, sessionsCreated, count int, now time.Time, loc *time.Location) ([]Slot, error) {
	return NewResolver(loc).Upcoming(pattern, sessionsCreated, count, now)
}
