package course

import (
	"context"
)

// ListOptions controls pagination of course and lesson listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps pagination values to sane bounds.
func (o *ListOptions) Normalize(defaultLimit, maxLimit int) {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// ListFilter narrows course listings.
type ListFilter struct {
	// Status filters by lifecycle state; empty means all states.
	Status Status

	// CreatorID filters by owning creator; empty means all creators.
	CreatorID string

	ListOptions
}

// Repository defines the storage contract for courses.
//
// The status field requires compare-and-swap discipline: TransitionStatus
// writes the new status only if the stored status still equals the expected
// one, so two concurrent transitions on the same course cannot both apply.
type Repository interface {
	// Create stores a new draft course.
	Create(ctx context.Context, c *Course) error

	// GetByID returns a course by ID.
	// Returns ErrCourseNotFound if absent.
	GetByID(ctx context.Context, id string) (*Course, error)

	// UpdateDraft persists title/description changes. The store applies the
	// update only while the stored status is still draft; otherwise it
	// returns ErrNotDraft.
	UpdateDraft(ctx context.Context, c *Course) error

	// TransitionStatus atomically moves a course from one status to another.
	// Returns ErrCourseNotFound if the course does not exist and
	// ErrStatusConflict if the stored status no longer equals from.
	TransitionStatus(ctx context.Context, id string, from, to Status) error

	// List returns courses matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Course, error)
}

// CatalogCache caches pages of the published catalog. Implementations are
// best effort: a miss or an error just sends the read to the repository.
type CatalogCache interface {
	// GetPage returns the cached page, or an error on a miss.
	GetPage(ctx context.Context, limit, offset int) ([]*Course, error)

	// SetPage stores a page.
	SetPage(ctx context.Context, limit, offset int, courses []*Course) error
}

// LessonRepository defines the storage contract for lessons.
type LessonRepository interface {
	// Create stores a new lesson. The (course_id, order_index) pair is
	// unique; a duplicate returns ErrDuplicateOrderIndex.
	Create(ctx context.Context, l *Lesson) error

	// GetByID returns a lesson by ID.
	// Returns ErrLessonNotFound if absent.
	GetByID(ctx context.Context, id string) (*Lesson, error)

	// ListByCourse returns the course's lessons ordered by order_index.
	ListByCourse(ctx context.Context, courseID string, opts ListOptions) ([]*Lesson, error)

	// CountByCourse returns the number of lessons in the course.
	CountByCourse(ctx context.Context, courseID string) (int, error)
}
