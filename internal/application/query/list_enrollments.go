package query

import (
	"context"
	"fmt"
	"time"

	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ENROLLMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListEnrollmentsQuery contains the parameters for an enrollment listing.
type ListEnrollmentsQuery struct {
	// UserID is the learner whose enrollments are requested.
	UserID string

	// Limit and Offset control pagination.
	Limit  int
	Offset int
}

// Validate validates the query.
func (q *ListEnrollmentsQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("enrollment", "List", shared.ErrInvalidArgument, "user id is required")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}

// EnrollmentDTO is the API representation of an enrollment.
type EnrollmentDTO struct {
	UserID     string    `json:"user_id"`
	CourseID   string    `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// ListEnrollmentsResult contains one page of enrollments.
type ListEnrollmentsResult struct {
	Items      []EnrollmentDTO
	NextOffset int
}

// ListEnrollmentsHandler handles the ListEnrollmentsQuery.
type ListEnrollmentsHandler struct {
	enrollmentRepo enrollment.Repository
}

// NewListEnrollmentsHandler creates a new ListEnrollmentsHandler.
func NewListEnrollmentsHandler(enrollmentRepo enrollment.Repository) *ListEnrollmentsHandler {
	return &ListEnrollmentsHandler{enrollmentRepo: enrollmentRepo}
}

// Handle executes the list enrollments query.
func (h *ListEnrollmentsHandler) Handle(ctx context.Context, q ListEnrollmentsQuery) (*ListEnrollmentsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	enrollments, err := h.enrollmentRepo.ListEnrollments(ctx, q.UserID, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list_enrollments: failed to list: %w", err)
	}

	result := &ListEnrollmentsResult{
		Items:      make([]EnrollmentDTO, 0, len(enrollments)),
		NextOffset: -1,
	}
	for _, e := range enrollments {
		result.Items = append(result.Items, EnrollmentDTO{
			UserID:     e.UserID,
			CourseID:   e.CourseID,
			EnrolledAt: e.EnrolledAt,
		})
	}
	if len(enrollments) == q.Limit {
		result.NextOffset = q.Offset + q.Limit
	}

	return result, nil
}
