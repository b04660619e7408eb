package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST COURSES QUERY
// Catalog listing with role-aware visibility: learners only ever see
// published courses; creators and admins may filter by any status.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListCoursesQuery contains the parameters for a catalog listing.
type ListCoursesQuery struct {
	// ActorRole is the role of the authenticated caller.
	ActorRole user.Role

	// ActorID is the authenticated caller, used for creator-scoped listings.
	ActorID string

	// Status filters by lifecycle state; empty means no filter (non-learners).
	Status course.Status

	// CreatorOnly limits the result to the actor's own courses.
	CreatorOnly bool

	// Limit and Offset control pagination.
	Limit  int
	Offset int
}

// Validate validates the query.
func (q *ListCoursesQuery) Validate() error {
	if q.Status != "" && !q.Status.IsValid() {
		return shared.NewDomainError("course", "List", shared.ErrInvalidArgument, "unknown status filter")
	}
	if q.CreatorOnly && q.ActorID == "" {
		return shared.NewDomainError("course", "List", shared.ErrInvalidArgument, "actor id is required")
	}
	return nil
}

// CourseDTO is the catalog representation of a course.
type CourseDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListCoursesResult contains one page of courses.
type ListCoursesResult struct {
	Items []CourseDTO

	// NextOffset is the offset of the next page, or -1 when this page is
	// the last one.
	NextOffset int
}

// ListCoursesHandler handles the ListCoursesQuery.
type ListCoursesHandler struct {
	courseRepo   course.Repository
	catalogCache course.CatalogCache
}

// NewListCoursesHandler creates a new ListCoursesHandler. The catalog cache
// is optional; nil disables caching.
func NewListCoursesHandler(courseRepo course.Repository, catalogCache course.CatalogCache) *ListCoursesHandler {
	return &ListCoursesHandler{
		courseRepo:   courseRepo,
		catalogCache: catalogCache,
	}
}

// Handle executes the list courses query.
func (h *ListCoursesHandler) Handle(ctx context.Context, q ListCoursesQuery) (*ListCoursesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := course.ListFilter{Status: q.Status}
	filter.Limit = q.Limit
	filter.Offset = q.Offset
	filter.Normalize(defaultPageSize, maxPageSize)

	// Learners browse the published catalog only, regardless of filter.
	if q.ActorRole == user.RoleLearner {
		filter.Status = course.StatusPublished
	}
	if q.CreatorOnly {
		filter.CreatorID = q.ActorID
	}

	// Only the shared published catalog is cached; creator and moderation
	// listings always read the repository.
	cacheable := filter.Status == course.StatusPublished && filter.CreatorID == ""

	if cacheable {
		if cached, err := h.tryCatalogCache(ctx, filter); err == nil && len(cached) > 0 {
			return h.buildResult(cached, filter), nil
		}
	}

	courses, err := h.courseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_courses: failed to list: %w", err)
	}

	if cacheable && h.catalogCache != nil && len(courses) > 0 {
		// Best effort; a failed write just sends the next read to postgres.
		_ = h.catalogCache.SetPage(ctx, filter.Limit, filter.Offset, courses)
	}

	return h.buildResult(courses, filter), nil
}

func (h *ListCoursesHandler) tryCatalogCache(ctx context.Context, filter course.ListFilter) ([]*course.Course, error) {
	if h.catalogCache == nil {
		return nil, errors.New("cache not available")
	}
	return h.catalogCache.GetPage(ctx, filter.Limit, filter.Offset)
}

func (h *ListCoursesHandler) buildResult(courses []*course.Course, filter course.ListFilter) *ListCoursesResult {
	result := &ListCoursesResult{
		Items:      make([]CourseDTO, 0, len(courses)),
		NextOffset: -1,
	}
	for _, c := range courses {
		result.Items = append(result.Items, toCourseDTO(c))
	}
	if len(courses) == filter.Limit {
		result.NextOffset = filter.Offset + filter.Limit
	}

	return result
}

func toCourseDTO(c *course.Course) CourseDTO {
	return CourseDTO{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		CreatorID:   c.CreatorID,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
