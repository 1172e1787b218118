package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers understood by the service.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures environment driven configuration values for the training center service.
type Config struct {
	HTTPPort  int    `env:"TRAINING_HTTP_PORT" envDefault:"8080"`
	Storage   string `env:"TRAINING_STORAGE" envDefault:"sqlite"`
	SQLiteDSN string `env:"TRAINING_SQLITE_DSN" envDefault:"data/trainingcenter.db"`
	Timezone  string `env:"TRAINING_TIMEZONE" envDefault:"UTC"`

	LogLevel  string `env:"TRAINING_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TRAINING_LOG_FORMAT" envDefault:"json"`

	LowAttendanceThreshold int           `env:"TRAINING_LOW_ATTENDANCE_THRESHOLD" envDefault:"70"`
	SessionCreateRetries   int           `env:"TRAINING_SESSION_CREATE_RETRIES" envDefault:"3"`
	DashboardCacheTTL      time.Duration `env:"TRAINING_DASHBOARD_CACHE_TTL" envDefault:"30s"`
	ShutdownTimeout        time.Duration `env:"TRAINING_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OTELEndpoint enables OTLP/HTTP trace export when set.
	OTELEndpoint string `env:"TRAINING_OTEL_ENDPOINT"`
	ServiceName  string `env:"TRAINING_SERVICE_NAME" envDefault:"trainingcenter"`

	// Location is resolved from Timezone.
	Location *time.Location `env:"-"`
}

// Load reads an optional .env file from the working directory and parses the process environment.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is like Load but reads the dotenv file at path. A missing file is not an error, and
// variables already present in the environment win over the file.
//
// Missing and invalid entries are reported together after parsing.
func LoadFrom(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "TRAINING_HTTP_PORT")
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	switch cfg.Storage {
	case StorageSQLite:
		if strings.TrimSpace(cfg.SQLiteDSN) == "" {
			missing = append(missing, "TRAINING_SQLITE_DSN")
		}
	case StorageMemory:
	default:
		invalid = append(invalid, "TRAINING_STORAGE")
	}

	if loc, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone)); err != nil {
		invalid = append(invalid, "TRAINING_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "TRAINING_LOG_LEVEL")
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		invalid = append(invalid, "TRAINING_LOG_FORMAT")
	}

	if cfg.LowAttendanceThreshold <= 0 || cfg.LowAttendanceThreshold > 100 {
		invalid = append(invalid, "TRAINING_LOW_ATTENDANCE_THRESHOLD")
	}
	if cfg.SessionCreateRetries < 0 {
		invalid = append(invalid, "TRAINING_SESSION_CREATE_RETRIES")
	}
	if cfg.DashboardCacheTTL <= 0 {
		invalid = append(invalid, "TRAINING_DASHBOARD_CACHE_TTL")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "TRAINING_SHUTDOWN_TIMEOUT")
	}
	if cfg.OTELEndpoint != "" && strings.TrimSpace(cfg.ServiceName) == "" {
		missing = append(missing, "TRAINING_SERVICE_NAME")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr renders the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
