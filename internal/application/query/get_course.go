package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE QUERY
// Single-course lookup with visibility rules: unpublished courses are only
// visible to their creator and admins.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseQuery contains the parameters for a course lookup.
type GetCourseQuery struct {
	// CourseID is the course to fetch.
	CourseID string

	// ActorID and ActorRole identify the authenticated viewer.
	ActorID   string
	ActorRole user.Role
}

// Validate validates the query.
func (q *GetCourseQuery) Validate() error {
	if q.CourseID == "" {
		return shared.NewDomainError("course", "Get", shared.ErrInvalidArgument, "course id is required")
	}
	return nil
}

// GetCourseResult contains the course.
type GetCourseResult struct {
	Course CourseDTO
}

// GetCourseHandler handles the GetCourseQuery.
type GetCourseHandler struct {
	courseRepo course.Repository
}

// NewGetCourseHandler creates a new GetCourseHandler.
func NewGetCourseHandler(courseRepo course.Repository) *GetCourseHandler {
	return &GetCourseHandler{courseRepo: courseRepo}
}

// Handle executes the get course query.
func (h *GetCourseHandler) Handle(ctx context.Context, q GetCourseQuery) (*GetCourseResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, q.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("get_course: failed to load course: %w", err)
	}

	if !crs.IsVisibleTo(q.ActorID, q.ActorRole == user.RoleAdmin) {
		return nil, shared.NewDomainError("course", "Get", shared.ErrForbidden, "course not available")
	}

	return &GetCourseResult{Course: toCourseDTO(crs)}, nil
}
