package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcourses/microcourses/internal/domain/course"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// Create stores a new draft course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	query := `
		INSERT INTO courses (id, creator_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.CreatorID,
		c.Title,
		c.Description,
		string(c.Status),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

// GetByID returns a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	query := `
		SELECT id, creator_id, title, description, status, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return scanCourse(row)
}

// UpdateDraft persists title/description changes while the course is still a
// draft. The status check happens in the UPDATE itself so a concurrent
// submit cannot slip an edit into a pending course.
func (r *CourseRepository) UpdateDraft(ctx context.Context, c *course.Course) error {
	query := `
		UPDATE courses
		SET title = $1, description = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	tag, err := r.conn.Exec(ctx, query,
		c.Title,
		c.Description,
		time.Now().UTC(),
		c.ID,
		string(course.StatusDraft),
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the course vanished or it left draft; re-read to tell which.
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return err
		}
		return course.ErrNotDraft
	}

	return nil
}

// TransitionStatus atomically moves a course from one status to another.
func (r *CourseRepository) TransitionStatus(ctx context.Context, id string, from, to course.Status) error {
	query := `
		UPDATE courses
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.conn.Exec(ctx, query,
		string(to),
		time.Now().UTC(),
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to transition course status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return course.ErrStatusConflict
	}

	return nil
}

// List returns courses matching the filter, newest first.
func (r *CourseRepository) List(ctx context.Context, filter course.ListFilter) ([]*course.Course, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatorID != "" {
		args = append(args, filter.CreatorID)
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", len(args)))
	}

	query := `
		SELECT id, creator_id, title, description, status, created_at, updated_at
		FROM courses
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}

	return courses, rows.Err()
}

func scanCourse(row pgx.Row) (*course.Course, error) {
	var c course.Course
	var status string

	err := row.Scan(
		&c.ID,
		&c.CreatorID,
		&c.Title,
		&c.Description,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.Status = course.Status(status)
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements course.LessonRepository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

// Create stores a new lesson.
func (r *LessonRepository) Create(ctx context.Context, l *course.Lesson) error {
	query := `
		INSERT INTO lessons (id, course_id, title, content, video_url, transcript, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		l.CourseID,
		l.Title,
		l.Content,
		l.VideoURL,
		l.Transcript,
		l.OrderIndex,
		l.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return course.ErrDuplicateOrderIndex
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return nil
}

// GetByID returns a lesson by ID.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*course.Lesson, error) {
	query := `
		SELECT id, course_id, title, content, video_url, transcript, order_index, created_at
		FROM lessons
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return scanLesson(row)
}

// ListByCourse returns the course's lessons ordered by order_index.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string, opts course.ListOptions) ([]*course.Lesson, error) {
	query := `
		SELECT id, course_id, title, content, video_url, transcript, order_index, created_at
		FROM lessons
		WHERE course_id = $1
		ORDER BY order_index
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, courseID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*course.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// CountByCourse returns the number of lessons in the course.
func (r *LessonRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM lessons WHERE course_id = $1",
		courseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}

	return count, nil
}

func scanLesson(row pgx.Row) (*course.Lesson, error) {
	var l course.Lesson

	err := row.Scan(
		&l.ID,
		&l.CourseID,
		&l.Title,
		&l.Content,
		&l.VideoURL,
		&l.Transcript,
		&l.OrderIndex,
		&l.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	return &l, nil
}
