package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"TRAINING_HTTP_PORT",
	"TRAINING_STORAGE",
	"TRAINING_SQLITE_DSN",
	"TRAINING_TIMEZONE",
	"TRAINING_LOG_LEVEL",
	"TRAINING_LOG_FORMAT",
	"TRAINING_LOW_ATTENDANCE_THRESHOLD",
	"TRAINING_SESSION_CREATE_RETRIES",
	"TRAINING_DASHBOARD_CACHE_TTL",
	"TRAINING_SHUTDOWN_TIMEOUT",
	"TRAINING_OTEL_ENDPOINT",
	"TRAINING_SERVICE_NAME",
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadFrom("")
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageSQLite || cfg.SQLiteDSN != "data/trainingcenter.db" {
			t.Fatalf("unexpected storage defaults: %q %q", cfg.Storage, cfg.SQLiteDSN)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.LowAttendanceThreshold != 70 || cfg.SessionCreateRetries != 3 {
			t.Fatalf("unexpected policy defaults: %+v", cfg)
		}
		if cfg.DashboardCacheTTL != 30*time.Second {
			t.Fatalf("expected dashboard TTL 30s, got %s", cfg.DashboardCacheTTL)
		}
		if cfg.OTELEndpoint != "" {
			t.Fatalf("expected tracing to be off by default")
		}
	})

	t.Run("parses duration, numeric and zone fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRAINING_HTTP_PORT", "9090")
		t.Setenv("TRAINING_STORAGE", "Memory")
		t.Setenv("TRAINING_TIMEZONE", "Asia/Tokyo")
		t.Setenv("TRAINING_LOG_LEVEL", "DEBUG")
		t.Setenv("TRAINING_LOG_FORMAT", "text")
		t.Setenv("TRAINING_LOW_ATTENDANCE_THRESHOLD", "60")
		t.Setenv("TRAINING_SESSION_CREATE_RETRIES", "0")
		t.Setenv("TRAINING_DASHBOARD_CACHE_TTL", "2m")

		cfg, err := LoadFrom("")
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageMemory {
			t.Fatalf("expected memory storage, got %q", cfg.Storage)
		}
		if cfg.Location == nil || cfg.Location.String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %v", cfg.Location)
		}
		if cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
			t.Fatalf("unexpected log settings: %q %q", cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.LowAttendanceThreshold != 60 || cfg.SessionCreateRetries != 0 {
			t.Fatalf("unexpected policy values: %+v", cfg)
		}
		if cfg.DashboardCacheTTL != 2*time.Minute {
			t.Fatalf("expected dashboard TTL 2m, got %s", cfg.DashboardCacheTTL)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRAINING_STORAGE", "postgres")
		t.Setenv("TRAINING_TIMEZONE", "Mars/Olympus")
		t.Setenv("TRAINING_LOW_ATTENDANCE_THRESHOLD", "120")

		_, err := LoadFrom("")
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment values: TRAINING_STORAGE, TRAINING_TIMEZONE, TRAINING_LOW_ATTENDANCE_THRESHOLD"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("rejects unparsable numbers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRAINING_HTTP_PORT", "eighty")

		if _, err := LoadFrom(""); err == nil {
			t.Fatalf("expected parse error for non numeric port")
		}
	})

	t.Run("reads dotenv files without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), ".env")
		content := "TRAINING_HTTP_PORT=7070\nTRAINING_STORAGE=memory\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write dotenv: %v", err)
		}
		t.Setenv("TRAINING_HTTP_PORT", "6060")

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("LoadFrom returned error: %v", err)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected environment to win over dotenv, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageMemory {
			t.Fatalf("expected storage from dotenv, got %q", cfg.Storage)
		}
	})

	t.Run("missing dotenv file is ignored", func(t *testing.T) {
		clearEnv(t)

		if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Fatalf("expected missing dotenv to be ignored, got %v", err)
		}
	})
}
