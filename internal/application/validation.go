package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/recurrence"
)

func requireString(vErr *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		vErr.add(field, field+" is required")
	}
	return value
}

// parseDate parses an optional YYYY-MM-DD value at midnight in loc.
func parseDate(vErr *ValidationError, field, value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		vErr.add(field, field+" must use YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

func parseClock(vErr *ValidationError, field, value string) (recurrence.Clock, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		vErr.add(field, field+" is required")
		return 0, false
	}
	c, err := recurrence.ParseClock(value)
	if err != nil {
		vErr.add(field, field+" must use 24-hour HH:MM format")
		return 0, false
	}
	return c, true
}

// parsePattern converts caller rows into weekly pattern entries.
func parsePattern(vErr *ValidationError, rows []PatternEntryInput) []recurrence.Entry {
	if len(rows) == 0 {
		return nil
	}
	pattern := make([]recurrence.Entry, 0, len(rows))
	for i, row := range rows {
		prefix := fmt.Sprintf("weeklyPattern[%d]", i)
		weekday, err := recurrence.ParseWeekday(row.Weekday)
		if err != nil {
			vErr.add(prefix+".weekday", "weekday must be a day name")
		}
		start, okStart := parseClock(vErr, prefix+".startTime", row.StartTime)
		end, okEnd := parseClock(vErr, prefix+".endTime", row.EndTime)
		if err != nil || !okStart || !okEnd {
			continue
		}
		entry := recurrence.Entry{Weekday: weekday, Start: start, End: end, Location: strings.TrimSpace(row.Location)}
		if err := entry.Validate(); err != nil {
			vErr.add(prefix+".endTime", "endTime must be after startTime")
			continue
		}
		pattern = append(pattern, entry)
	}
	return pattern
}
