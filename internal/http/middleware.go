package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/trainingcenter/internal/application"
)

const (
	headerTrainerID   = "X-Trainer-ID"
	headerTrainerRole = "X-Trainer-Role"
	roleAdmin         = "admin"
)

// RequirePrincipal builds the principal from the gateway headers and rejects requests without one.
func RequirePrincipal(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trainerID := strings.TrimSpace(r.Header.Get(headerTrainerID))
			if trainerID == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "UNAUTHENTICATED",
					Message:   errMissingPrincipal.Error(),
				})
				return
			}

			principal := application.Principal{
				TrainerID: trainerID,
				IsAdmin:   strings.EqualFold(strings.TrimSpace(r.Header.Get(headerTrainerRole)), roleAdmin),
			}
			if logger := LoggerFromContext(r.Context()); logger != nil {
				r = r.WithContext(ContextWithLogger(r.Context(), logger.With("principal_id", trainerID)))
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}
