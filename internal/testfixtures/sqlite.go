package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/trainingcenter/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated store in a temporary directory. The store is
// closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "trainingcenter.db")
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(path), sqlite.Options{
		Location: time.UTC,
		Now:      ReferenceTime,
	})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
