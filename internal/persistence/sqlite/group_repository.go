package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

const groupColumns = `id, course_id, trainer_id, name, weekly_pattern, start_date, end_date, status,
	sessions_created_count, created_at, updated_at`

// CreateGroup inserts a new group.
func (s *Store) CreateGroup(ctx context.Context, group persistence.Group) error {
	if group.ID == "" {
		return persistence.ErrConstraintViolation
	}
	pattern, err := encodePattern(group.WeeklyPattern)
	if err != nil {
		return err
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO training_groups (`+groupColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			group.ID,
			group.CourseID,
			group.TrainerID,
			group.Name,
			pattern,
			s.dateKey(group.StartDate),
			s.dateKey(group.EndDate),
			string(group.Status),
			group.SessionsCreatedCount,
			formatTime(group.CreatedAt),
			formatTime(group.UpdatedAt),
		)
		return s.mapper.MapError(err)
	})
}

// UpdateGroup replaces the mutable columns of a group. The session counter is left untouched.
func (s *Store) UpdateGroup(ctx context.Context, group persistence.Group) error {
	pattern, err := encodePattern(group.WeeklyPattern)
	if err != nil {
		return err
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE training_groups
			SET course_id = ?, trainer_id = ?, name = ?, weekly_pattern = ?, start_date = ?, end_date = ?,
				status = ?, updated_at = ?
			WHERE id = ?`,
			group.CourseID,
			group.TrainerID,
			group.Name,
			pattern,
			s.dateKey(group.StartDate),
			s.dateKey(group.EndDate),
			string(group.Status),
			formatTime(group.UpdatedAt),
			group.ID,
		)
		if err != nil {
			return s.mapper.MapError(err)
		}
		return requireAffected(res)
	})
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	row := s.db().QueryRowContext(ctx, `SELECT `+groupColumns+` FROM training_groups WHERE id = ?`, id)
	group, err := s.scanGroup(row)
	if err != nil {
		return persistence.Group{}, s.mapper.MapError(err)
	}
	return group, nil
}

// ListGroups returns groups matching filter ordered by creation time.
func (s *Store) ListGroups(ctx context.Context, filter persistence.GroupFilter) ([]persistence.Group, error) {
	var (
		where []string
		args  []any
	)
	if filter.TrainerID != "" {
		where = append(where, "trainer_id = ?")
		args = append(args, filter.TrainerID)
	}
	if filter.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + groupColumns + ` FROM training_groups`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	groups := make([]persistence.Group, 0)
	for rows.Next() {
		group, err := s.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate groups")
	}
	return groups, nil
}

// AppendSession increments the group counter conditionally and inserts session in the same transaction.
func (s *Store) AppendSession(ctx context.Context, session lifecycle.Session, expectedCount int) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE training_groups
			SET sessions_created_count = sessions_created_count + 1, updated_at = ?
			WHERE id = ? AND sessions_created_count = ?`,
			formatTime(session.CreatedAt), session.GroupID, expectedCount,
		)
		if err != nil {
			return s.mapper.MapError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		} else if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM training_groups WHERE id = ?`, session.GroupID).Scan(&exists)
			if err != nil {
				return s.mapper.MapError(err)
			}
			return persistence.ErrConcurrentUpdate
		}
		return s.insertSession(ctx, tx, session)
	})
}

func (s *Store) scanGroup(row interface{ Scan(...any) error }) (persistence.Group, error) {
	var (
		group                        persistence.Group
		pattern, startDate, endDate  string
		status, createdAt, updatedAt string
	)
	if err := row.Scan(
		&group.ID,
		&group.CourseID,
		&group.TrainerID,
		&group.Name,
		&pattern,
		&startDate,
		&endDate,
		&status,
		&group.SessionsCreatedCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Group{}, err
	}

	var err error
	if group.WeeklyPattern, err = decodePattern(pattern); err != nil {
		return persistence.Group{}, err
	}
	if group.StartDate, err = s.parseDate(startDate); err != nil {
		return persistence.Group{}, err
	}
	if group.EndDate, err = s.parseDate(endDate); err != nil {
		return persistence.Group{}, err
	}
	if group.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Group{}, err
	}
	if group.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Group{}, err
	}
	group.Status = persistence.GroupStatus(status)
	return group, nil
}

func encodePattern(pattern []recurrence.Entry) (string, error) {
	if pattern == nil {
		pattern = []recurrence.Entry{}
	}
	data, err := json.Marshal(pattern)
	if err != nil {
		return "", errors.Wrap(err, "encode weekly pattern")
	}
	return string(data), nil
}

func decodePattern(data string) ([]recurrence.Entry, error) {
	var pattern []recurrence.Entry
	if err := json.Unmarshal([]byte(data), &pattern); err != nil {
		return nil, errors.Wrap(err, "decode weekly pattern")
	}
	return pattern, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
