package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

type groupService interface {
	CreateGroup(ctx context.Context, params application.CreateGroupParams) (persistence.Group, error)
	GetGroup(ctx context.Context, principal application.Principal, groupID string) (persistence.Group, error)
	UpdateGroupStatus(ctx context.Context, params application.UpdateGroupStatusParams) (persistence.Group, error)
	UpcomingSlots(ctx context.Context, principal application.Principal, groupID string, count int) ([]recurrence.Slot, error)
	EnrollStudent(ctx context.Context, params application.EnrollStudentParams) (persistence.Enrollment, error)
	ListEnrollments(ctx context.Context, principal application.Principal, groupID string) ([]persistence.Enrollment, error)
}

type GroupHandler struct {
	service   groupService
	responder responder
	logger    *slog.Logger
}

func NewGroupHandler(service groupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rejectPayload(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	group, err := h.service.CreateGroup(r.Context(), req.toParams(principal))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "GroupHandler", "Create", "group_id", group.ID).
		DebugContext(r.Context(), "group provisioned")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, groupResponse{Group: toGroupDTO(group)})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	group, err := h.service.GetGroup(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, groupResponse{Group: toGroupDTO(group)})
}

func (h *GroupHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req groupStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rejectPayload(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	group, err := h.service.UpdateGroupStatus(r.Context(), application.UpdateGroupStatusParams{
		Principal: principal,
		GroupID:   r.PathValue("id"),
		Status:    req.Status,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, groupResponse{Group: toGroupDTO(group)})
}

func (h *GroupHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	count := 5
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		count = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	slots, err := h.service.UpcomingSlots(r.Context(), principal, r.PathValue("id"), count)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{
			Ordinal:   slot.Ordinal,
			Date:      slot.Date.Format(time.DateOnly),
			StartTime: slot.Start.String(),
			EndTime:   slot.End.String(),
			Location:  slot.Location,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, upcomingResponse{Slots: out})
}

func (h *GroupHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rejectPayload(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	enrollment, err := h.service.EnrollStudent(r.Context(), application.EnrollStudentParams{
		Principal: principal,
		GroupID:   r.PathValue("id"),
		StudentID: req.StudentID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, enrollmentResponse{Enrollment: toEnrollmentDTO(enrollment)})
}

func (h *GroupHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	enrollments, err := h.service.ListEnrollments(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]enrollmentDTO, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, toEnrollmentDTO(e))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEnrollmentsResponse{Enrollments: out})
}

func (h *GroupHandler) rejectPayload(w http.ResponseWriter, r *http.Request, err error) {
	rejectPayload(h.responder, w, r, err)
}

// rejectPayload answers a decode failure with 400 and a shape violation with 422.
func rejectPayload(resp responder, w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBadRequestBody) {
		resp.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	resp.handleServiceError(r.Context(), w, err)
}

type patternEntryRequest struct {
	Weekday   string `json:"weekday" validate:"required"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
	Location  string `json:"location"`
}

type groupRequest struct {
	TrainerID     string                `json:"trainerId"`
	CourseID      string                `json:"courseId" validate:"required,notblank"`
	Name          string                `json:"name" validate:"required,notblank"`
	WeeklyPattern []patternEntryRequest `json:"weeklyPattern" validate:"dive"`
	StartDate     string                `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate       string                `json:"endDate" validate:"required,datetime=2006-01-02"`
}

func (r groupRequest) toParams(principal application.Principal) application.CreateGroupParams {
	pattern := make([]application.PatternEntryInput, 0, len(r.WeeklyPattern))
	for _, entry := range r.WeeklyPattern {
		pattern = append(pattern, application.PatternEntryInput{
			Weekday:   entry.Weekday,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			Location:  entry.Location,
		})
	}
	return application.CreateGroupParams{
		Principal:     principal,
		TrainerID:     strings.TrimSpace(r.TrainerID),
		CourseID:      r.CourseID,
		Name:          r.Name,
		WeeklyPattern: pattern,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	}
}

type groupStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type enrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required,notblank"`
}

type patternEntryDTO struct {
	Weekday   string `json:"weekday"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location,omitempty"`
}

type groupDTO struct {
	ID                   string            `json:"id"`
	CourseID             string            `json:"courseId"`
	TrainerID            string            `json:"trainerId"`
	Name                 string            `json:"name"`
	WeeklyPattern        []patternEntryDTO `json:"weeklyPattern"`
	StartDate            string            `json:"startDate"`
	EndDate              string            `json:"endDate"`
	Status               string            `json:"status"`
	SessionsCreatedCount int               `json:"sessionsCreatedCount"`
	CreatedAt            string            `json:"createdAt"`
	UpdatedAt            string            `json:"updatedAt"`
}

func toGroupDTO(group persistence.Group) groupDTO {
	pattern := make([]patternEntryDTO, 0, len(group.WeeklyPattern))
	for _, entry := range group.WeeklyPattern {
		pattern = append(pattern, patternEntryDTO{
			Weekday:   strings.ToLower(entry.Weekday.String()),
			StartTime: entry.Start.String(),
			EndTime:   entry.End.String(),
			Location:  entry.Location,
		})
	}
	return groupDTO{
		ID:                   group.ID,
		CourseID:             group.CourseID,
		TrainerID:            group.TrainerID,
		Name:                 group.Name,
		WeeklyPattern:        pattern,
		StartDate:            group.StartDate.Format(time.DateOnly),
		EndDate:              group.EndDate.Format(time.DateOnly),
		Status:               string(group.Status),
		SessionsCreatedCount: group.SessionsCreatedCount,
		CreatedAt:            group.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:            group.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type groupResponse struct {
	Group groupDTO `json:"group"`
}

type slotDTO struct {
	Ordinal   int    `json:"ordinal"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location,omitempty"`
}

type upcomingResponse struct {
	Slots []slotDTO `json:"slots"`
}

type enrollmentDTO struct {
	ID         string `json:"id"`
	CourseID   string `json:"courseId"`
	GroupID    string `json:"groupId"`
	StudentID  string `json:"studentId"`
	Status     string `json:"status"`
	EnrolledAt string `json:"enrolledAt"`
}

func toEnrollmentDTO(e persistence.Enrollment) enrollmentDTO {
	return enrollmentDTO{
		ID:         e.ID,
		CourseID:   e.CourseID,
		GroupID:    e.GroupID,
		StudentID:  e.StudentID,
		Status:     string(e.Status),
		EnrolledAt: e.EnrolledAt.UTC().Format(time.RFC3339Nano),
	}
}

type enrollmentResponse struct {
	Enrollment enrollmentDTO `json:"enrollment"`
}

type listEnrollmentsResponse struct {
	Enrollments []enrollmentDTO `json:"enrollments"`
}
