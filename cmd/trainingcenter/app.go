package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/config"
	httptransport "github.com/example/trainingcenter/internal/http"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/persistence/memory"
	"github.com/example/trainingcenter/internal/persistence/sqlite"
	"github.com/example/trainingcenter/internal/stats"
	"github.com/example/trainingcenter/internal/telemetry"
)

// run serves the API until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(cfg, store, logger, time.Now),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("training center API listening", "addr", server.Addr, "storage", cfg.Storage, "timezone", cfg.Location.String())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), sqlite.Options{
			Location: cfg.Location,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage)
	}
}

// newHandler wires services and handlers over store.
func newHandler(cfg config.Config, store persistence.Store, logger *slog.Logger, now func() time.Time) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	serviceConfig := application.ServiceConfig{
		IDGenerator:   uuid.NewString,
		Now:           now,
		Location:      loc,
		Logger:        logger,
		CreateRetries: cfg.SessionCreateRetries,
		Policy:        stats.Policy{LowAttendanceThreshold: cfg.LowAttendanceThreshold},
		DashboardTTL:  cfg.DashboardCacheTTL,
	}
	statsService := application.NewStatsService(store, serviceConfig)
	serviceConfig.Invalidator = statsService

	return httptransport.NewRouter(httptransport.RouterConfig{
		Groups:     httptransport.NewGroupHandler(application.NewGroupService(store, serviceConfig), logger),
		Sessions:   httptransport.NewSessionHandler(application.NewSessionService(store, serviceConfig), loc, logger),
		Attendance: httptransport.NewAttendanceHandler(application.NewAttendanceService(store, serviceConfig), logger),
		Reports:    httptransport.NewReportHandler(application.NewCalendarService(store, serviceConfig), statsService, loc, logger),
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}
