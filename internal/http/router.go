package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Groups     *GroupHandler
	Sessions   *SessionHandler
	Attendance *AttendanceHandler
	Reports    *ReportHandler
	Logger     *slog.Logger
	// Middleware wraps every route, including the health check.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if cfg.Groups != nil {
		api.HandleFunc("POST /groups", cfg.Groups.Create)
		api.HandleFunc("GET /groups/{id}", cfg.Groups.Get)
		api.HandleFunc("PATCH /groups/{id}/status", cfg.Groups.UpdateStatus)
		api.HandleFunc("GET /groups/{id}/upcoming", cfg.Groups.Upcoming)
		api.HandleFunc("POST /groups/{id}/enrollments", cfg.Groups.Enroll)
		api.HandleFunc("GET /groups/{id}/enrollments", cfg.Groups.ListEnrollments)
	}

	if cfg.Sessions != nil {
		api.HandleFunc("POST /sessions", cfg.Sessions.Create)
		api.HandleFunc("GET /sessions", cfg.Sessions.List)
		api.HandleFunc("GET /sessions/{id}", cfg.Sessions.Get)
		api.HandleFunc("PATCH /sessions/{id}", cfg.Sessions.Update)
		api.HandleFunc("DELETE /sessions/{id}", cfg.Sessions.Delete)
		api.HandleFunc("POST /sessions/{id}/start", cfg.Sessions.Start)
		api.HandleFunc("POST /sessions/{id}/end", cfg.Sessions.End)
		api.HandleFunc("PUT /sessions/{id}/evaluation", cfg.Sessions.Evaluate)
		api.HandleFunc("GET /sessions/{id}/evaluation", cfg.Sessions.GetEvaluation)
	}

	if cfg.Attendance != nil {
		api.HandleFunc("POST /attendance", cfg.Attendance.Mark)
		api.HandleFunc("GET /attendance/summary", cfg.Attendance.StudentSummary)
		api.HandleFunc("GET /sessions/{id}/attendance/summary", cfg.Attendance.SessionSummary)
	}

	if cfg.Reports != nil {
		api.HandleFunc("GET /calendar", cfg.Reports.Calendar)
		api.HandleFunc("GET /stats/groups/{id}", cfg.Reports.GroupStats)
		api.HandleFunc("GET /stats/dashboard", cfg.Reports.Dashboard)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", RequirePrincipal(cfg.Logger)(api))

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
