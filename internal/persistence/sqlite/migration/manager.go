package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager orchestrates scanning, verifying and applying migrations.
type Manager struct {
	fsys     fs.FS
	dir      string
	executor *SQLiteExecutor
	logger   *slog.Logger
}

// NewManager creates a manager applying the migrations found in dir of fsys to db.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fsys:     fsys,
		dir:      dir,
		executor: NewSQLiteExecutor(db),
		logger:   logger.With("component", "migration"),
	}
}

// Run applies all pending migrations in version order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	for i, mig := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", mig.Version,
			"description", mig.Description,
			"position", i+1,
			"pending", len(status.Pending),
		)
		if err := m.executor.ExecuteMigration(ctx, mig); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", mig.Version, "error", err)
			return i, err
		}
	}

	m.logger.InfoContext(ctx, "migrations applied",
		"count", len(status.Pending),
		"version", status.Pending[len(status.Pending)-1].Version,
		"elapsed", time.Since(started),
	)
	return len(status.Pending), nil
}

// Status compares the available files with the schema_migrations table.
// Applied files whose content changed since they ran are reported as ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}
	available, err := Scan(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	status := &Status{Applied: applied}
	for _, am := range applied {
		appliedByVersion[am.Version] = am
		status.CurrentVersion = am.Version
	}

	for _, mig := range available {
		am, ok := appliedByVersion[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			return nil, newMigrationError(mig.Version, mig.FilePath, "verify checksum",
				fmt.Errorf("%w: applied %s, file %s", ErrChecksumMismatch, am.Checksum, mig.Checksum))
		}
	}
	return status, nil
}
