package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/persistence"
)

// UpsertAttendance loads or creates the record of scope, applies mutate and rewrites its
// entries, all inside one write transaction.
func (s *Store) UpsertAttendance(ctx context.Context, scope attendance.Scope, newID string, now time.Time, mutate func(*attendance.Record) error) (*attendance.Record, error) {
	var result *attendance.Record
	err := s.write(ctx, func(tx *sql.Tx) error {
		rec, err := s.loadRecord(ctx, tx, scope.CourseID, s.dateKey(scope.Date))
		isNew := errors.Is(err, persistence.ErrNotFound)
		switch {
		case isNew:
			rec = attendance.NewRecord(newID, scope, now)
		case err != nil:
			return err
		}

		if err := mutate(rec); err != nil {
			return err
		}

		if isNew {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO attendance_records (id, course_id, attendance_date, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				rec.ID, rec.Scope.CourseID, s.dateKey(rec.Scope.Date), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
			)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE attendance_records SET updated_at = ? WHERE id = ?`,
				formatTime(rec.UpdatedAt), rec.ID)
		}
		if err != nil {
			return s.mapper.MapError(err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_entries WHERE record_id = ?`, rec.ID); err != nil {
			return s.mapper.MapError(err)
		}
		for i, entry := range rec.Entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attendance_entries (record_id, student_id, position, status, marked_by, marked_at, check_in_time, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID,
				entry.StudentID,
				i,
				string(entry.Status),
				entry.MarkedBy,
				formatTime(entry.MarkedAt),
				formatNullableTime(entry.CheckInTime),
				entry.Notes,
			)
			if err != nil {
				return s.mapper.MapError(err)
			}
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAttendance returns the record of scope.
func (s *Store) GetAttendance(ctx context.Context, scope attendance.Scope) (*attendance.Record, error) {
	return s.loadRecord(ctx, s.db(), scope.CourseID, s.dateKey(scope.Date))
}

// ListAttendance returns the records matching filter ordered by course and date.
func (s *Store) ListAttendance(ctx context.Context, filter persistence.AttendanceFilter) ([]*attendance.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.From != nil {
		where = append(where, "attendance_date >= ?")
		args = append(args, s.dateKey(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "attendance_date <= ?")
		args = append(args, s.dateKey(*filter.To))
	}

	query := `SELECT id, course_id, attendance_date, created_at, updated_at FROM attendance_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY course_id ASC, attendance_date ASC"

	rows, err := s.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	records := make([]*attendance.Record, 0)
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate attendance records")
	}
	rows.Close()

	for _, rec := range records {
		if rec.Entries, err = s.loadEntries(ctx, s.db(), rec.ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) loadRecord(ctx context.Context, q querier, courseID, date string) (*attendance.Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, course_id, attendance_date, created_at, updated_at
		FROM attendance_records
		WHERE course_id = ? AND attendance_date = ?`, courseID, date)
	rec, err := s.scanRecord(row)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	if rec.Entries, err = s.loadEntries(ctx, q, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) scanRecord(row interface{ Scan(...any) error }) (*attendance.Record, error) {
	var (
		rec                        attendance.Record
		date, createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Scope.CourseID, &date, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.Scope.Date, err = s.parseDate(date); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) loadEntries(ctx context.Context, q querier, recordID string) ([]attendance.StudentAttendance, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id, status, marked_by, marked_at, check_in_time, notes
		FROM attendance_entries
		WHERE record_id = ?
		ORDER BY position ASC`, recordID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []attendance.StudentAttendance
	for rows.Next() {
		var (
			entry            attendance.StudentAttendance
			status, markedAt string
			checkIn          sql.NullString
		)
		if err := rows.Scan(&entry.StudentID, &status, &entry.MarkedBy, &markedAt, &checkIn, &entry.Notes); err != nil {
			return nil, errors.Wrap(err, "scan attendance entry")
		}
		entry.Status = attendance.Status(status)
		if entry.MarkedAt, err = parseTime(markedAt); err != nil {
			return nil, err
		}
		if entry.CheckInTime, err = parseNullableTime(checkIn); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate attendance entries")
	}
	return entries, nil
}
