package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SessionView, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.SessionView, error)
	StartSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	EndSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (application.SessionView, error)
	DeleteSession(ctx context.Context, params application.DeleteSessionParams) error
	EvaluateSession(ctx context.Context, params application.EvaluateSessionParams) (persistence.Evaluation, error)
	GetEvaluation(ctx context.Context, principal application.Principal, sessionID string) (persistence.Evaluation, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	location  *time.Location
}

// NewSessionHandler builds the session handler. loc renders session instants.
func NewSessionHandler(service sessionService, loc *time.Location, logger *slog.Logger) *SessionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionHandler{service: service, responder: newResponder(logger), location: loc}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		rejectPayload(h.responder, w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal:     principal,
		GroupID:       req.GroupID,
		Title:         req.Title,
		Description:   req.Description,
		LessonPlan:    req.LessonPlan,
		ScheduledDate: req.ScheduledDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Location:      req.Location,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: h.toDTO(view)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.GetSession(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: h.toDTO(view)})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	views, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{
		Principal: principal,
		GroupID:   strings.TrimSpace(query.Get("groupId")),
		Status:    strings.TrimSpace(query.Get("status")),
		StartDate: strings.TrimSpace(query.Get("startDate")),
		EndDate:   strings.TrimSpace(query.Get("endDate")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]sessionDTO, 0, len(views))
	for _, view := range views {
		out = append(out, h.toDTO(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: out})
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.StartSession(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: h.toDTO(view)})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.EndSession(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: h.toDTO(view)})
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		rejectPayload(h.responder, w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		Principal: principal,
		SessionID: r.PathValue("id"),
		Update: lifecycle.ContentUpdate{
			Title:       req.Title,
			Description: req.Description,
			LessonPlan:  req.LessonPlan,
			Location:    req.Location,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: h.toDTO(view)})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	permanent := false
	if raw := strings.TrimSpace(query.Get("permanent")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		permanent = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteSession(r.Context(), application.DeleteSessionParams{
		Principal: principal,
		SessionID: r.PathValue("id"),
		Permanent: permanent,
		Reason:    strings.TrimSpace(query.Get("reason")),
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SessionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if err := decodeJSON(r, &req); err != nil {
		rejectPayload(h.responder, w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	evaluation, err := h.service.EvaluateSession(r.Context(), application.EvaluateSessionParams{
		Principal: principal,
		SessionID: r.PathValue("id"),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, evaluationResponse{Evaluation: toEvaluationDTO(evaluation)})
}

func (h *SessionHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	evaluation, err := h.service.GetEvaluation(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, evaluationResponse{Evaluation: toEvaluationDTO(evaluation)})
}

type createSessionRequest struct {
	Title         string `json:"title" validate:"required,notblank"`
	GroupID       string `json:"groupId" validate:"required,notblank"`
	Description   string `json:"description"`
	LessonPlan    string `json:"lessonPlan"`
	ScheduledDate string `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime     string `json:"startTime" validate:"required_with=ScheduledDate,hhmm"`
	EndTime       string `json:"endTime" validate:"required_with=ScheduledDate,hhmm"`
	Location      string `json:"location"`
}

type updateSessionRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	LessonPlan  *string `json:"lessonPlan"`
	Location    *string `json:"location"`
}

type evaluationRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type sessionDTO struct {
	ID                 string  `json:"id"`
	GroupID            string  `json:"groupId"`
	CourseID           string  `json:"courseId"`
	TrainerID          string  `json:"trainerId"`
	Ordinal            int     `json:"ordinal"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	LessonPlan         string  `json:"lessonPlan,omitempty"`
	ScheduledDate      string  `json:"scheduledDate"`
	StartTime          string  `json:"startTime"`
	EndTime            string  `json:"endTime"`
	StartsAt           string  `json:"startsAt"`
	EndsAt             string  `json:"endsAt"`
	Location           string  `json:"location,omitempty"`
	Status             string  `json:"status"`
	StoredStatus       string  `json:"storedStatus"`
	CancellationReason string  `json:"cancellationReason,omitempty"`
	ActualStart        *string `json:"actualStart,omitempty"`
	ActualEnd          *string `json:"actualEnd,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

func (h *SessionHandler) toDTO(view application.SessionView) sessionDTO {
	return toSessionDTO(view, h.location)
}

func toSessionDTO(view application.SessionView, loc *time.Location) sessionDTO {
	s := view.Session
	return sessionDTO{
		ID:                 s.ID,
		GroupID:            s.GroupID,
		CourseID:           s.CourseID,
		TrainerID:          s.TrainerID,
		Ordinal:            s.Ordinal,
		Title:              s.Title,
		Description:        s.Description,
		LessonPlan:         s.LessonPlan,
		ScheduledDate:      s.ScheduledDate.Format(time.DateOnly),
		StartTime:          s.StartTime.String(),
		EndTime:            s.EndTime.String(),
		StartsAt:           s.StartsAt(loc).Format(time.RFC3339),
		EndsAt:             s.EndTime.On(s.ScheduledDate, loc).Format(time.RFC3339),
		Location:           s.Location,
		Status:             string(view.DerivedStatus),
		StoredStatus:       string(s.Status),
		CancellationReason: s.CancellationReason,
		ActualStart:        formatOptional(s.ActualStart),
		ActualEnd:          formatOptional(s.ActualEnd),
		CreatedAt:          s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339Nano)
	return &formatted
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type evaluationDTO struct {
	SessionID string `json:"sessionId"`
	TrainerID string `json:"trainerId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

func toEvaluationDTO(e persistence.Evaluation) evaluationDTO {
	return evaluationDTO{
		SessionID: e.SessionID,
		TrainerID: e.TrainerID,
		Rating:    e.Rating,
		Comment:   e.Comment,
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type evaluationResponse struct {
	Evaluation evaluationDTO `json:"evaluation"`
}
