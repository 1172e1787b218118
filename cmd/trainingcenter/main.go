package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/trainingcenter/internal/config"
	"github.com/example/trainingcenter/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("training center exited with error", "error", err)
		os.Exit(1)
	}
}
