package attendance

import "math"

// Tally counts entries per status.
type Tally struct {
	Present int
	Absent  int
	Late    int
	Excused int
}

func (t *Tally) add(s Status) {
	switch s {
	case StatusPresent:
		t.Present++
	case StatusLate:
		t.Late++
	case StatusExcused:
		t.Excused++
	default:
		t.Absent++
	}
}

// Total returns the number of counted entries.
func (t Tally) Total() int {
	return t.Present + t.Absent + t.Late + t.Excused
}

// StudentSummary aggregates one student's attendance across the records of a course.
//
// Percentage counts present, late and excused as attended.
type StudentSummary struct {
	StudentID     string
	TotalSessions int
	Tally
	Percentage int
}

// SessionSummary aggregates one record against the expected roster.
//
// AttendanceRate counts only present and late; excused students lower the rate.
type SessionSummary struct {
	Scope         Scope
	TotalStudents int
	Tally
	AttendanceRate int
}

// SummarizeStudent computes the student summary over records.
// A record without an entry for the student counts as an absence.
func SummarizeStudent(records []*Record, studentID string) StudentSummary {
	summary := StudentSummary{StudentID: studentID}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		summary.TotalSessions++
		entry, ok := rec.Entry(studentID)
		if !ok {
			summary.add(StatusAbsent)
			continue
		}
		summary.add(entry.Status)
	}
	summary.Percentage = Percent(summary.Present+summary.Late+summary.Excused, summary.TotalSessions)
	return summary
}

// SummarizeSession computes the session summary for rec against roster.
//
// Roster members without an entry count as absent. Students with an entry who are not on
// the roster are still counted. A nil record yields an all-absent summary.
func SummarizeSession(rec *Record, roster []string) SessionSummary {
	var summary SessionSummary
	seen := make(map[string]struct{}, len(roster))
	if rec != nil {
		summary.Scope = rec.Scope
		for _, e := range rec.Entries {
			if _, dup := seen[e.StudentID]; dup {
				continue
			}
			seen[e.StudentID] = struct{}{}
			summary.add(e.Status)
		}
	}
	for _, studentID := range roster {
		if _, ok := seen[studentID]; ok {
			continue
		}
		seen[studentID] = struct{}{}
		summary.add(StatusAbsent)
	}
	summary.TotalStudents = len(seen)
	summary.AttendanceRate = Percent(summary.Present+summary.Late, summary.TotalStudents)
	return summary
}

// Percent returns round(100*part/total) clamped to [0,100]; a non-positive total yields 0.
func Percent(part, total int) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	v := int(math.Round(100 * float64(part) / float64(total)))
	if v > 100 {
		return 100
	}
	return v
}
