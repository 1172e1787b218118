package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

const sessionColumns = `id, group_id, course_id, trainer_id, ordinal, title, description, lesson_plan,
	scheduled_date, start_minute, end_minute, location, status, cancellation_reason,
	actual_start, actual_end, created_at, updated_at`

func (s *Store) insertSession(ctx context.Context, q querier, session lifecycle.Session) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.GroupID,
		session.CourseID,
		session.TrainerID,
		session.Ordinal,
		session.Title,
		session.Description,
		session.LessonPlan,
		s.dateKey(session.ScheduledDate),
		int(session.StartTime),
		int(session.EndTime),
		session.Location,
		string(session.Status),
		session.CancellationReason,
		formatNullableTime(session.ActualStart),
		formatNullableTime(session.ActualEnd),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	return s.mapper.MapError(err)
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (lifecycle.Session, error) {
	row := s.db().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := s.scanSession(row)
	if err != nil {
		return lifecycle.Session{}, s.mapper.MapError(err)
	}
	return session, nil
}

// UpdateSession replaces the mutable columns of a session whose stored status is still expected.
func (s *Store) UpdateSession(ctx context.Context, session lifecycle.Session, expected lifecycle.Status) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET title = ?, description = ?, lesson_plan = ?, scheduled_date = ?, start_minute = ?,
				end_minute = ?, location = ?, status = ?, cancellation_reason = ?, actual_start = ?,
				actual_end = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			session.Title,
			session.Description,
			session.LessonPlan,
			s.dateKey(session.ScheduledDate),
			int(session.StartTime),
			int(session.EndTime),
			session.Location,
			string(session.Status),
			session.CancellationReason,
			formatNullableTime(session.ActualStart),
			formatNullableTime(session.ActualEnd),
			formatTime(session.UpdatedAt),
			session.ID,
			string(expected),
		)
		if err != nil {
			return s.mapper.MapError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		} else if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, session.ID).Scan(&exists)
			if err != nil {
				return s.mapper.MapError(err)
			}
			return persistence.ErrConcurrentUpdate
		}
		return nil
	})
}

// ListSessions returns sessions ordered by scheduled date, start time and ordinal.
func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error) {
	var (
		where []string
		args  []any
	)
	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.TrainerID != "" {
		where = append(where, "trainer_id = ?")
		args = append(args, filter.TrainerID)
	}
	if filter.From != nil {
		where = append(where, "scheduled_date >= ?")
		args = append(args, s.dateKey(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "scheduled_date <= ?")
		args = append(args, s.dateKey(*filter.To))
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_date ASC, start_minute ASC, ordinal ASC, id ASC"

	rows, err := s.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	sessions := make([]lifecycle.Session, 0)
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sessions")
	}
	return sessions, nil
}

// DeleteSession removes a session, its evaluation and the attendance record of its
// course and date, then decrements the group counter without going below zero. The
// attendance record stays while another session of the course is held on that date.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		var groupID, courseID, scheduledDate string
		err := tx.QueryRowContext(ctx,
			`SELECT group_id, course_id, scheduled_date FROM sessions WHERE id = ?`, id,
		).Scan(&groupID, &courseID, &scheduledDate)
		if err != nil {
			return s.mapper.MapError(err)
		}

		steps := []struct {
			query string
			args  []any
		}{
			{`DELETE FROM session_evaluations WHERE session_id = ?`, []any{id}},
			{`DELETE FROM attendance_entries WHERE record_id IN (
				SELECT id FROM attendance_records WHERE course_id = ? AND attendance_date = ?)
				AND NOT EXISTS (` + sharedDate + `)`, []any{courseID, scheduledDate, courseID, scheduledDate, id}},
			{`DELETE FROM attendance_records WHERE course_id = ? AND attendance_date = ?
				AND NOT EXISTS (` + sharedDate + `)`, []any{courseID, scheduledDate, courseID, scheduledDate, id}},
			{`DELETE FROM sessions WHERE id = ?`, []any{id}},
			{`UPDATE training_groups
				SET sessions_created_count = MAX(sessions_created_count - 1, 0), updated_at = ?
				WHERE id = ?`, []any{formatTime(s.now()), groupID}},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, step.args...); err != nil {
				return s.mapper.MapError(err)
			}
		}
		return nil
	})
}

// sharedDate matches other sessions of a course on a date, excluding the one being deleted.
const sharedDate = `SELECT 1 FROM sessions WHERE course_id = ? AND scheduled_date = ? AND id <> ?`

func (s *Store) scanSession(row interface{ Scan(...any) error }) (lifecycle.Session, error) {
	var (
		session                lifecycle.Session
		scheduledDate, status  string
		startMinute, endMinute int
		actualStart, actualEnd sql.NullString
		createdAt, updatedAt   string
	)
	if err := row.Scan(
		&session.ID,
		&session.GroupID,
		&session.CourseID,
		&session.TrainerID,
		&session.Ordinal,
		&session.Title,
		&session.Description,
		&session.LessonPlan,
		&scheduledDate,
		&startMinute,
		&endMinute,
		&session.Location,
		&status,
		&session.CancellationReason,
		&actualStart,
		&actualEnd,
		&createdAt,
		&updatedAt,
	); err != nil {
		return lifecycle.Session{}, err
	}

	var err error
	if session.ScheduledDate, err = s.parseDate(scheduledDate); err != nil {
		return lifecycle.Session{}, err
	}
	if session.ActualStart, err = parseNullableTime(actualStart); err != nil {
		return lifecycle.Session{}, err
	}
	if session.ActualEnd, err = parseNullableTime(actualEnd); err != nil {
		return lifecycle.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return lifecycle.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return lifecycle.Session{}, err
	}
	session.StartTime = recurrence.Clock(startMinute)
	session.EndTime = recurrence.Clock(endMinute)
	session.Status = lifecycle.Status(status)
	return session, nil
}
