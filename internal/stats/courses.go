package stats

import (
	"sort"

	"github.com/example/trainingcenter/internal/attendance"
)

// EnrollmentStatus mirrors the stored enrollment states counted by CourseBreakdown.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// EnrollmentFact is a single enrollment of a student in a course.
type EnrollmentFact struct {
	CourseID string
	Status   EnrollmentStatus
}

// CourseStats is the popularity and completion rollup of one course.
type CourseStats struct {
	CourseID       string
	Enrollments    int
	Active         int
	Completed      int
	Dropped        int
	CompletionRate int
	PopularityRank int
}

// CourseBreakdown counts enrollments per course and ranks courses by enrollment count.
// Ties are broken by course id.
func CourseBreakdown(facts []EnrollmentFact) []CourseStats {
	byCourse := make(map[string]*CourseStats)
	for _, f := range facts {
		c, ok := byCourse[f.CourseID]
		if !ok {
			c = &CourseStats{CourseID: f.CourseID}
			byCourse[f.CourseID] = c
		}
		c.Enrollments++
		switch f.Status {
		case EnrollmentCompleted:
			c.Completed++
		case EnrollmentDropped:
			c.Dropped++
		default:
			c.Active++
		}
	}

	out := make([]CourseStats, 0, len(byCourse))
	for _, c := range byCourse {
		c.CompletionRate = attendance.Percent(c.Completed, c.Enrollments)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enrollments != out[j].Enrollments {
			return out[i].Enrollments > out[j].Enrollments
		}
		return out[i].CourseID < out[j].CourseID
	})
	for i := range out {
		out[i].PopularityRank = i + 1
	}
	return out
}

// Dashboard is the combined rollup served to administrators.
type Dashboard struct {
	Trainers []TrainerScore
	Courses  []CourseStats
	Alerts   []Alert
}

// BuildDashboard assembles the trainer ranking, course breakdown and alerts.
func BuildDashboard(trainerIDs []string, groups []GroupStats, facts []EnrollmentFact, policy Policy) Dashboard {
	return Dashboard{
		Trainers: TrainerRanking(trainerIDs, groups),
		Courses:  CourseBreakdown(facts),
		Alerts:   LowAttendanceAlerts(groups, policy),
	}
}
