package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source shared between services under test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock stopped at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock is stopped at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for ServiceConfig.Now. A nil clock falls back to wall time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// At moves the clock to hhmm on the calendar date of day, keeping the clock's zone.
// It is the usual way to step into or past a session window.
func (c *Clock) At(day time.Time, hour, minute int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc := c.current.Location()
	y, m, d := day.In(loc).Date()
	c.current = time.Date(y, m, d, hour, minute, 0, 0, loc)
	return c.current
}
