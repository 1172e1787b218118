package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidClock indicates a time of day that is not a 24-hour HH:MM value.
	ErrInvalidClock = errors.New("recurrence: time must use 24-hour HH:MM format")
	// ErrInvalidWeekday indicates an unknown weekday name.
	ErrInvalidWeekday = errors.New("recurrence: invalid weekday")
	// ErrInvalidWindow indicates an entry whose end does not follow its start on the same day.
	ErrInvalidWindow = errors.New("recurrence: end time must be after start time")
)

// Clock is a time of day expressed as minutes after midnight.
type Clock int

// ParseClock parses a strict 24-hour "HH:MM" value.
func ParseClock(value string) (Clock, error) {
	if len(value) != 5 || value[2] != ':' || !digits(value[:2]) || !digits(value[3:]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, _ := strconv.Atoi(value[:2])
	minute, _ := strconv.Atoi(value[3:])
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return Clock(hour*60 + minute), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParseClock is like ParseClock but panics on malformed input.
func MustParseClock(value string) Clock {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On combines the clock with the calendar date of day in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = day.Location()
	}
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Entry is one recurring weekly meeting slot of a group.
type Entry struct {
	Weekday  time.Weekday
	Start    Clock
	End      Clock
	Location string
}

// Validate checks the weekday range and that the slot does not run overnight.
func (e Entry) Validate() error {
	if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if e.Start < 0 || e.Start >= 24*60 || e.End < 0 || e.End >= 24*60 {
		return ErrInvalidClock
	}
	if e.End <= e.Start {
		return ErrInvalidWindow
	}
	return nil
}

// DurationMinutes reports the length of the slot for display.
func (e Entry) DurationMinutes() int {
	return int(e.End - e.Start)
}

// ParseWeekday accepts full or three letter English weekday names in any case.
func ParseWeekday(value string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// StartOfWeek returns midnight of the Sunday at or before t in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
