package postgres

import (
	"context"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/enrollment"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
//
// All pairwise uniqueness (enrollment, completion, certificate) rides on the
// table primary keys with ON CONFLICT DO NOTHING, so concurrent duplicate
// writers both succeed and exactly one row survives.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

// Enroll inserts an enrollment if absent.
func (r *EnrollmentRepository) Enroll(ctx context.Context, e *enrollment.Enrollment) (bool, error) {
	query := `
		INSERT INTO enrollments (user_id, course_id, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, e.UserID, e.CourseID, e.EnrolledAt)
	if err != nil {
		return false, fmt.Errorf("failed to enroll: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetEnrollment returns the enrollment for the pair.
func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	query := `
		SELECT user_id, course_id, enrolled_at
		FROM enrollments
		WHERE user_id = $1 AND course_id = $2
	`

	var e enrollment.Enrollment
	err := r.conn.QueryRow(ctx, query, userID, courseID).Scan(&e.UserID, &e.CourseID, &e.EnrolledAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, enrollment.ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return &e, nil
}

// ListEnrollments returns the learner's enrollments, newest first.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, userID string, limit, offset int) ([]*enrollment.Enrollment, error) {
	query := `
		SELECT user_id, course_id, enrolled_at
		FROM enrollments
		WHERE user_id = $1
		ORDER BY enrolled_at DESC, course_id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*enrollment.Enrollment
	for rows.Next() {
		var e enrollment.Enrollment
		if err := rows.Scan(&e.UserID, &e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, &e)
	}

	return enrollments, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Completions and certificates
// ─────────────────────────────────────────────────────────────────────────────

// CompleteLesson records a completion, recounts the course, and issues the
// certificate at 100%, all inside one transaction. The certificate insert
// uses ON CONFLICT DO NOTHING so only one of two racing finishers mints it;
// the loser reads the winner's row.
func (r *EnrollmentRepository) CompleteLesson(ctx context.Context, c *enrollment.LessonCompletion, courseID, serial string) (*enrollment.CompletionOutcome, error) {
	outcome := &enrollment.CompletionOutcome{}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, lesson_id) DO NOTHING
		`, c.UserID, c.LessonID, c.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to record completion: %w", err)
		}
		outcome.Recorded = tag.RowsAffected() > 0

		err = tx.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM lessons WHERE course_id = $1),
				(SELECT COUNT(*)
				 FROM lesson_completions lc
				 JOIN lessons l ON l.id = lc.lesson_id
				 WHERE lc.user_id = $2 AND l.course_id = $1)
		`, courseID, c.UserID).Scan(&outcome.TotalLessons, &outcome.CompletedLessons)
		if err != nil {
			return fmt.Errorf("failed to recount progress: %w", err)
		}

		if outcome.TotalLessons > 0 && outcome.CompletedLessons == outcome.TotalLessons {
			tag, err := tx.Exec(ctx, `
				INSERT INTO certificates (user_id, course_id, serial, issued_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (user_id, course_id) DO NOTHING
			`, c.UserID, courseID, serial)
			if err != nil {
				return fmt.Errorf("failed to issue certificate: %w", err)
			}
			outcome.CertificateIssued = tag.RowsAffected() > 0

			cert, err := getCertificateTx(ctx, tx, c.UserID, courseID)
			if err != nil {
				return err
			}
			outcome.Certificate = cert
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// GetCertificate returns the certificate for the pair.
func (r *EnrollmentRepository) GetCertificate(ctx context.Context, userID, courseID string) (*enrollment.Certificate, error) {
	query := `
		SELECT user_id, course_id, serial, issued_at
		FROM certificates
		WHERE user_id = $1 AND course_id = $2
	`

	return scanCertificate(r.conn.QueryRow(ctx, query, userID, courseID))
}

// GetCertificateBySerial returns a certificate by its serial.
func (r *EnrollmentRepository) GetCertificateBySerial(ctx context.Context, serial string) (*enrollment.Certificate, error) {
	query := `
		SELECT user_id, course_id, serial, issued_at
		FROM certificates
		WHERE serial = $1
	`

	return scanCertificate(r.conn.QueryRow(ctx, query, serial))
}

func getCertificateTx(ctx context.Context, tx pgx.Tx, userID, courseID string) (*enrollment.Certificate, error) {
	row := tx.QueryRow(ctx, `
		SELECT user_id, course_id, serial, issued_at
		FROM certificates
		WHERE user_id = $1 AND course_id = $2
	`, userID, courseID)

	return scanCertificate(row)
}

func scanCertificate(row pgx.Row) (*enrollment.Certificate, error) {
	var cert enrollment.Certificate
	err := row.Scan(&cert.UserID, &cert.CourseID, &cert.Serial, &cert.IssuedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, enrollment.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	return &cert, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

// ProgressFor returns the learner's progress in one course. Runs inside a
// read-only repeatable-read transaction so the enrollment check, the counts,
// and the ID list come from the same snapshot. Returns ErrNotEnrolled when
// the pair has no enrollment row.
func (r *EnrollmentRepository) ProgressFor(ctx context.Context, userID, courseID string) (*enrollment.Progress, error) {
	var p *enrollment.Progress

	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		var enrolled bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM enrollments
				WHERE user_id = $1 AND course_id = $2
			)
		`, userID, courseID).Scan(&enrolled)
		if err != nil {
			return fmt.Errorf("failed to check enrollment: %w", err)
		}
		if !enrolled {
			return enrollment.ErrNotEnrolled
		}

		p, err = progressForTx(ctx, tx, userID, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// ProgressAll returns the learner's progress across all enrolled courses,
// newest enrollment first, from a single snapshot.
func (r *EnrollmentRepository) ProgressAll(ctx context.Context, userID string) ([]*enrollment.Progress, error) {
	var all []*enrollment.Progress

	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT course_id
			FROM enrollments
			WHERE user_id = $1
			ORDER BY enrolled_at DESC, course_id
		`, userID)
		if err != nil {
			return fmt.Errorf("failed to list enrolled courses: %w", err)
		}

		var courseIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan course id: %w", err)
			}
			courseIDs = append(courseIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, courseID := range courseIDs {
			p, err := progressForTx(ctx, tx, userID, courseID)
			if err != nil {
				return err
			}
			all = append(all, p)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

func progressForTx(ctx context.Context, tx pgx.Tx, userID, courseID string) (*enrollment.Progress, error) {
	p := &enrollment.Progress{
		CourseID:           courseID,
		CompletedLessonIDs: []string{},
	}

	err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM lessons WHERE course_id = $1",
		courseID,
	).Scan(&p.TotalLessons)
	if err != nil {
		return nil, fmt.Errorf("failed to count lessons: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT lc.lesson_id
		FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		WHERE lc.user_id = $1 AND l.course_id = $2
		ORDER BY lc.lesson_id
	`, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		p.CompletedLessonIDs = append(p.CompletedLessonIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.CompletedLessons = len(p.CompletedLessonIDs)

	var serial string
	err = tx.QueryRow(ctx, `
		SELECT serial FROM certificates
		WHERE user_id = $1 AND course_id = $2
	`, userID, courseID).Scan(&serial)
	if err != nil && !IsNoRows(err) {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	p.CertificateSerial = serial

	return p, nil
}
