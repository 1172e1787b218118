// Package stats computes attendance and enrollment rollups for dashboards and alerting.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
)

const (
	// LowAttendanceThreshold is the group average below which an alert is raised.
	LowAttendanceThreshold = 70
	// ExcludeEmptySessions skips sessions without any attendance entry when averaging.
	ExcludeEmptySessions = true
	// NoDataScore is the score of a trainer whose active groups have no attendance yet.
	NoDataScore = 0.0
)

// Policy carries the tunable aggregation parameters.
type Policy struct {
	LowAttendanceThreshold int
}

// DefaultPolicy returns the policy built from the package constants.
func DefaultPolicy() Policy {
	return Policy{LowAttendanceThreshold: LowAttendanceThreshold}
}

// GroupInput bundles what is needed to compute one group's statistics.
type GroupInput struct {
	GroupID   string
	CourseID  string
	TrainerID string
	Active    bool
	Roster    []string
	Sessions  []lifecycle.Session
	// Records are keyed by attendance.Scope.Key().
	Records  map[string]*attendance.Record
	Location *time.Location
}

// SessionRate is the attendance rate of one session of a group.
type SessionRate struct {
	SessionID      string
	Ordinal        int
	Date           time.Time
	Marked         int
	AttendanceRate int
}

// GroupStats is the rollup of one group.
type GroupStats struct {
	GroupID           string
	CourseID          string
	TrainerID         string
	Active            bool
	TotalSessions     int
	SessionsWithData  int
	AverageAttendance float64
	Sessions          []SessionRate
}

// HasData reports whether at least one session contributed to the average.
func (g GroupStats) HasData() bool {
	return g.SessionsWithData > 0
}

// GroupAverage computes per-session rates and their mean for a group. Cancelled sessions
// never contribute.
func GroupAverage(in GroupInput) GroupStats {
	out := GroupStats{
		GroupID:       in.GroupID,
		CourseID:      in.CourseID,
		TrainerID:     in.TrainerID,
		Active:        in.Active,
		TotalSessions: len(in.Sessions),
	}

	sum := 0
	for _, session := range in.Sessions {
		if session.Status == lifecycle.StatusCancelled {
			continue
		}
		scope, err := attendance.NewScope(in.CourseID, session.ScheduledDate, in.Location)
		if err != nil {
			continue
		}
		rec := in.Records[scope.Key()]
		marked := 0
		if rec != nil {
			marked = len(rec.Entries)
		}
		if marked == 0 && ExcludeEmptySessions {
			continue
		}
		summary := attendance.SummarizeSession(rec, in.Roster)
		out.Sessions = append(out.Sessions, SessionRate{
			SessionID:      session.ID,
			Ordinal:        session.Ordinal,
			Date:           scope.Date,
			Marked:         marked,
			AttendanceRate: summary.AttendanceRate,
		})
		sum += summary.AttendanceRate
	}

	out.SessionsWithData = len(out.Sessions)
	if out.SessionsWithData > 0 {
		out.AverageAttendance = round1(float64(sum) / float64(out.SessionsWithData))
	}
	return out
}

// TrainerScore is one row of the trainer ranking.
type TrainerScore struct {
	TrainerID      string
	ActiveGroups   int
	GroupsWithData int
	Score          float64
	Rank           int
}

// TrainerRanking averages the group averages of each trainer's active groups.
//
// An active group without data counts as NoDataScore, so a trainer with no data at all
// scores NoDataScore. Every trainer in trainerIDs appears in the result even without
// groups. Rows are ordered by score descending, then trainer id.
func TrainerRanking(trainerIDs []string, groups []GroupStats) []TrainerScore {
	rows := make(map[string]*TrainerScore, len(trainerIDs))
	sums := make(map[string]float64, len(trainerIDs))
	row := func(id string) *TrainerScore {
		if r, ok := rows[id]; ok {
			return r
		}
		r := &TrainerScore{TrainerID: id, Score: NoDataScore}
		rows[id] = r
		return r
	}

	for _, id := range trainerIDs {
		row(id)
	}
	for _, g := range groups {
		if !g.Active || g.TrainerID == "" {
			continue
		}
		r := row(g.TrainerID)
		r.ActiveGroups++
		if g.HasData() {
			r.GroupsWithData++
			sums[g.TrainerID] += g.AverageAttendance
		} else {
			sums[g.TrainerID] += NoDataScore
		}
	}

	out := make([]TrainerScore, 0, len(rows))
	for id, r := range rows {
		if r.ActiveGroups > 0 {
			r.Score = round1(sums[id] / float64(r.ActiveGroups))
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TrainerID < out[j].TrainerID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Alert flags an active group with low but non-zero attendance.
type Alert struct {
	GroupID           string
	CourseID          string
	TrainerID         string
	AverageAttendance float64
	Threshold         int
}

// LowAttendanceAlerts returns the active groups whose average lies strictly between zero
// and the policy threshold, lowest average first.
func LowAttendanceAlerts(groups []GroupStats, policy Policy) []Alert {
	var alerts []Alert
	for _, g := range groups {
		if !g.Active || !g.HasData() {
			continue
		}
		if g.AverageAttendance > 0 && g.AverageAttendance < float64(policy.LowAttendanceThreshold) {
			alerts = append(alerts, Alert{
				GroupID:           g.GroupID,
				CourseID:          g.CourseID,
				TrainerID:         g.TrainerID,
				AverageAttendance: g.AverageAttendance,
				Threshold:         policy.LowAttendanceThreshold,
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].AverageAttendance != alerts[j].AverageAttendance {
			return alerts[i].AverageAttendance < alerts[j].AverageAttendance
		}
		return alerts[i].GroupID < alerts[j].GroupID
	})
	return alerts
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
