// Package sqlite implements the persistence repositories on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/persistence/sqlite/migration"
	"github.com/example/trainingcenter/internal/persistence/sqlite/migrations"
)

// Options tunes a Store beyond its connection settings.
type Options struct {
	// Location is the operational time zone used to rebuild calendar dates.
	Location *time.Location
	Logger   *slog.Logger
	Retry    RetryConfig
	// Now stamps bookkeeping columns that have no caller-provided time.
	Now func() time.Time
}

// Store implements every persistence repository against one SQLite database.
type Store struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	loc    *time.Location
	now    func() time.Time
}

var _ persistence.Store = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the database described by cfg and applies embedded migrations.
func Open(ctx context.Context, cfg Config, opts Options) (*Store, error) {
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := migration.NewManager(pool.DB(), migrations.FS, ".", opts.Logger).Run(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(opts.Retry),
		loc:    opts.Location,
		now:    opts.Now,
	}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// write runs fn in a transaction, retrying while the database is busy.
func (s *Store) write(ctx context.Context, fn TransactionFunc) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, fn)
	})
}

func (s *Store) db() *sql.DB {
	return s.pool.DB()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", value)
	}
	return t.UTC(), nil
}

func formatNullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) parseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, value, s.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse date %q", value)
	}
	return t, nil
}

func (s *Store) dateKey(t time.Time) string {
	return persistence.DateKey(t.In(s.loc))
}
