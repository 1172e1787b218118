package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/stats"
)

type calendarService interface {
	Calendar(ctx context.Context, params application.CalendarParams) (application.Calendar, error)
}

type statsService interface {
	GroupStats(ctx context.Context, principal application.Principal, groupID string) (stats.GroupStats, error)
	Dashboard(ctx context.Context, principal application.Principal) (stats.Dashboard, error)
}

// ReportHandler serves the read-only calendar and statistics views.
type ReportHandler struct {
	calendar  calendarService
	stats     statsService
	responder responder
	location  *time.Location
}

func NewReportHandler(calendar calendarService, stats statsService, loc *time.Location, logger *slog.Logger) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{calendar: calendar, stats: stats, responder: newResponder(logger), location: loc}
}

func (h *ReportHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	calendar, err := h.calendar.Calendar(r.Context(), application.CalendarParams{
		Principal: principal,
		View:      strings.TrimSpace(query.Get("view")),
		Date:      strings.TrimSpace(query.Get("date")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	entries := make([]calendarEntryDTO, 0, len(calendar.Entries))
	for _, entry := range calendar.Entries {
		entries = append(entries, calendarEntryDTO{
			Session:     toSessionDTO(entry.Session, h.location),
			GroupName:   entry.GroupName,
			GroupStatus: string(entry.GroupStatus),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarResponse{
		View:     string(calendar.View),
		Start:    calendar.Start.Format(time.DateOnly),
		End:      calendar.End.Format(time.DateOnly),
		Sessions: entries,
	})
}

func (h *ReportHandler) GroupStats(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.stats.GroupStats(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGroupStatsDTO(result))
}

func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	dashboard, err := h.stats.Dashboard(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := dashboardDTO{
		Trainers: make([]trainerScoreDTO, 0, len(dashboard.Trainers)),
		Courses:  make([]courseStatsDTO, 0, len(dashboard.Courses)),
		Alerts:   make([]alertDTO, 0, len(dashboard.Alerts)),
	}
	for _, t := range dashboard.Trainers {
		out.Trainers = append(out.Trainers, trainerScoreDTO{
			Rank:           t.Rank,
			TrainerID:      t.TrainerID,
			Score:          t.Score,
			ActiveGroups:   t.ActiveGroups,
			GroupsWithData: t.GroupsWithData,
		})
	}
	for _, c := range dashboard.Courses {
		out.Courses = append(out.Courses, courseStatsDTO{
			PopularityRank: c.PopularityRank,
			CourseID:       c.CourseID,
			Enrollments:    c.Enrollments,
			Active:         c.Active,
			Completed:      c.Completed,
			Dropped:        c.Dropped,
			CompletionRate: c.CompletionRate,
		})
	}
	for _, a := range dashboard.Alerts {
		out.Alerts = append(out.Alerts, alertDTO{
			GroupID:           a.GroupID,
			CourseID:          a.CourseID,
			TrainerID:         a.TrainerID,
			AverageAttendance: a.AverageAttendance,
			Threshold:         a.Threshold,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

type calendarEntryDTO struct {
	Session     sessionDTO `json:"session"`
	GroupName   string     `json:"groupName"`
	GroupStatus string     `json:"groupStatus"`
}

type calendarResponse struct {
	View     string             `json:"view"`
	Start    string             `json:"start"`
	End      string             `json:"end"`
	Sessions []calendarEntryDTO `json:"sessions"`
}

type sessionRateDTO struct {
	SessionID      string `json:"sessionId"`
	Ordinal        int    `json:"ordinal"`
	Date           string `json:"date"`
	Marked         int    `json:"marked"`
	AttendanceRate int    `json:"attendanceRate"`
}

type groupStatsDTO struct {
	GroupID           string           `json:"groupId"`
	CourseID          string           `json:"courseId"`
	TrainerID         string           `json:"trainerId"`
	TotalSessions     int              `json:"totalSessions"`
	SessionsWithData  int              `json:"sessionsWithData"`
	AverageAttendance float64          `json:"averageAttendance"`
	Sessions          []sessionRateDTO `json:"sessions"`
}

func toGroupStatsDTO(g stats.GroupStats) groupStatsDTO {
	out := groupStatsDTO{
		GroupID:           g.GroupID,
		CourseID:          g.CourseID,
		TrainerID:         g.TrainerID,
		TotalSessions:     g.TotalSessions,
		SessionsWithData:  g.SessionsWithData,
		AverageAttendance: g.AverageAttendance,
		Sessions:          make([]sessionRateDTO, 0, len(g.Sessions)),
	}
	for _, s := range g.Sessions {
		out.Sessions = append(out.Sessions, sessionRateDTO{
			SessionID:      s.SessionID,
			Ordinal:        s.Ordinal,
			Date:           s.Date.Format(time.DateOnly),
			Marked:         s.Marked,
			AttendanceRate: s.AttendanceRate,
		})
	}
	return out
}

type trainerScoreDTO struct {
	Rank           int     `json:"rank"`
	TrainerID      string  `json:"trainerId"`
	Score          float64 `json:"score"`
	ActiveGroups   int     `json:"activeGroups"`
	GroupsWithData int     `json:"groupsWithData"`
}

type courseStatsDTO struct {
	PopularityRank int    `json:"popularityRank"`
	CourseID       string `json:"courseId"`
	Enrollments    int    `json:"enrollments"`
	Active         int    `json:"active"`
	Completed      int    `json:"completed"`
	Dropped        int    `json:"dropped"`
	CompletionRate int    `json:"completionRate"`
}

type alertDTO struct {
	GroupID           string  `json:"groupId"`
	CourseID          string  `json:"courseId"`
	TrainerID         string  `json:"trainerId"`
	AverageAttendance float64 `json:"averageAttendance"`
	Threshold         int     `json:"threshold"`
}

type dashboardDTO struct {
	Trainers []trainerScoreDTO `json:"trainers"`
	Courses  []courseStatsDTO  `json:"courses"`
	Alerts   []alertDTO        `json:"alerts"`
}
