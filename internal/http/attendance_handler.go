package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/attendance"
)

type attendanceService interface {
	MarkAttendance(ctx context.Context, params application.MarkAttendanceParams) (*attendance.Record, error)
	StudentSummary(ctx context.Context, params application.StudentSummaryParams) (attendance.StudentSummary, error)
	SessionSummary(ctx context.Context, principal application.Principal, sessionID string) (application.SessionAttendanceSummary, error)
}

type AttendanceHandler struct {
	service   attendanceService
	responder responder
}

func NewAttendanceHandler(service attendanceService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{service: service, responder: newResponder(logger)}
}

func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		rejectPayload(h.responder, w, r, err)
		return
	}

	marks := make([]application.AttendanceMark, 0, len(req.Records))
	for _, rec := range req.Records {
		marks = append(marks, application.AttendanceMark{
			StudentID: rec.StudentID,
			Status:    rec.Status,
			Notes:     rec.Notes,
		})
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.MarkAttendance(r.Context(), application.MarkAttendanceParams{
		Principal: principal,
		SessionID: strings.TrimSpace(req.SessionID),
		CourseID:  strings.TrimSpace(req.CourseID),
		Date:      strings.TrimSpace(req.Date),
		Marks:     marks,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceRecordResponse{Record: toAttendanceRecordDTO(record)})
}

func (h *AttendanceHandler) StudentSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	summary, err := h.service.StudentSummary(r.Context(), application.StudentSummaryParams{
		Principal: principal,
		CourseID:  strings.TrimSpace(query.Get("courseId")),
		StudentID: strings.TrimSpace(query.Get("studentId")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, studentSummaryDTO{
		StudentID:     summary.StudentID,
		TotalSessions: summary.TotalSessions,
		Present:       summary.Present,
		Absent:        summary.Absent,
		Late:          summary.Late,
		Excused:       summary.Excused,
		Percentage:    summary.Percentage,
	})
}

func (h *AttendanceHandler) SessionSummary(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	summary, err := h.service.SessionSummary(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionSummaryDTO{
		SessionID:      summary.SessionID,
		GroupID:        summary.GroupID,
		TotalStudents:  summary.TotalStudents,
		Present:        summary.Present,
		Absent:         summary.Absent,
		Late:           summary.Late,
		Excused:        summary.Excused,
		AttendanceRate: summary.AttendanceRate,
	})
}

type attendanceEntryRequest struct {
	StudentID string `json:"studentId" validate:"required,notblank"`
	Status    string `json:"status" validate:"required"`
	Notes     string `json:"notes"`
}

// markAttendanceRequest addresses a record by sessionId or by courseId and date.
type markAttendanceRequest struct {
	SessionID string                   `json:"sessionId" validate:"required_without=CourseID"`
	CourseID  string                   `json:"courseId" validate:"required_without=SessionID"`
	Date      string                   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Records   []attendanceEntryRequest `json:"records" validate:"required,min=1,dive"`
}

type attendanceEntryDTO struct {
	StudentID   string  `json:"studentId"`
	Status      string  `json:"status"`
	MarkedBy    string  `json:"markedBy"`
	MarkedAt    string  `json:"markedAt"`
	CheckInTime *string `json:"checkInTime,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

type attendanceRecordDTO struct {
	ID        string               `json:"id"`
	CourseID  string               `json:"courseId"`
	Date      string               `json:"date"`
	Records   []attendanceEntryDTO `json:"records"`
	UpdatedAt string               `json:"updatedAt"`
}

func toAttendanceRecordDTO(rec *attendance.Record) attendanceRecordDTO {
	if rec == nil {
		return attendanceRecordDTO{}
	}
	entries := make([]attendanceEntryDTO, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		entries = append(entries, attendanceEntryDTO{
			StudentID:   e.StudentID,
			Status:      string(e.Status),
			MarkedBy:    e.MarkedBy,
			MarkedAt:    e.MarkedAt.UTC().Format(time.RFC3339Nano),
			CheckInTime: formatOptional(e.CheckInTime),
			Notes:       e.Notes,
		})
	}
	return attendanceRecordDTO{
		ID:        rec.ID,
		CourseID:  rec.Scope.CourseID,
		Date:      rec.Scope.Date.Format(time.DateOnly),
		Records:   entries,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type attendanceRecordResponse struct {
	Record attendanceRecordDTO `json:"record"`
}

type studentSummaryDTO struct {
	StudentID     string `json:"studentId"`
	TotalSessions int    `json:"totalSessions"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	Late          int    `json:"late"`
	Excused       int    `json:"excused"`
	Percentage    int    `json:"percentage"`
}

type sessionSummaryDTO struct {
	SessionID      string `json:"sessionId"`
	GroupID        string `json:"groupId"`
	TotalStudents  int    `json:"totalStudents"`
	Present        int    `json:"present"`
	Absent         int    `json:"absent"`
	Late           int    `json:"late"`
	Excused        int    `json:"excused"`
	AttendanceRate int    `json:"attendanceRate"`
}
