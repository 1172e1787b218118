package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/example/trainingcenter/internal/persistence"
)

// CreateEnrollment inserts a new enrollment. A student can be enrolled in a group once.
func (s *Store) CreateEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	if enrollment.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO enrollments (id, course_id, group_id, student_id, status, enrolled_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			enrollment.ID,
			enrollment.CourseID,
			enrollment.GroupID,
			enrollment.StudentID,
			string(enrollment.Status),
			formatTime(enrollment.EnrolledAt),
			formatTime(enrollment.UpdatedAt),
		)
		return s.mapper.MapError(err)
	})
}

// ListEnrollments returns enrollments matching filter ordered by enrollment time.
func (s *Store) ListEnrollments(ctx context.Context, filter persistence.EnrollmentFilter) ([]persistence.Enrollment, error) {
	var (
		where []string
		args  []any
	)
	if filter.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}

	query := `SELECT id, course_id, group_id, student_id, status, enrolled_at, updated_at FROM enrollments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY enrolled_at ASC, id ASC"

	rows, err := s.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	enrollments := make([]persistence.Enrollment, 0)
	for rows.Next() {
		var (
			e                             persistence.Enrollment
			status, enrolledAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.CourseID, &e.GroupID, &e.StudentID, &status, &enrolledAt, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "scan enrollment")
		}
		e.Status = persistence.EnrollmentStatus(status)
		if e.EnrolledAt, err = parseTime(enrolledAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate enrollments")
	}
	return enrollments, nil
}

// UpsertEvaluation stores or replaces the evaluation of an existing session.
func (s *Store) UpsertEvaluation(ctx context.Context, evaluation persistence.Evaluation) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, evaluation.SessionID).Scan(&exists); err != nil {
			return s.mapper.MapError(err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_evaluations (session_id, trainer_id, rating, comment, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET
				trainer_id = excluded.trainer_id,
				rating = excluded.rating,
				comment = excluded.comment,
				updated_at = excluded.updated_at`,
			evaluation.SessionID,
			evaluation.TrainerID,
			evaluation.Rating,
			evaluation.Comment,
			formatTime(evaluation.CreatedAt),
			formatTime(evaluation.UpdatedAt),
		)
		return s.mapper.MapError(err)
	})
}

// GetEvaluation returns the evaluation of a session.
func (s *Store) GetEvaluation(ctx context.Context, sessionID string) (persistence.Evaluation, error) {
	var (
		evaluation           persistence.Evaluation
		createdAt, updatedAt string
	)
	err := s.db().QueryRowContext(ctx, `
		SELECT session_id, trainer_id, rating, comment, created_at, updated_at
		FROM session_evaluations WHERE session_id = ?`, sessionID,
	).Scan(&evaluation.SessionID, &evaluation.TrainerID, &evaluation.Rating, &evaluation.Comment, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Evaluation{}, s.mapper.MapError(err)
	}
	if evaluation.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Evaluation{}, err
	}
	if evaluation.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Evaluation{}, err
	}
	return evaluation, nil
}
