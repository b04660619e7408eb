// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The progress aggregator: per enrolled course, how many lessons exist, how
// many the learner has completed, the floor percentage, the sorted list of
// completed lesson IDs, and the certificate serial if one exists.
//
// Pure read; no side effects. The store computes each answer from a
// consistent snapshot of completions, not necessarily linearized with
// in-flight completion writes.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters for a progress lookup.
type GetProgressQuery struct {
	// UserID is the learner whose progress is requested.
	UserID string

	// CourseID narrows the result to one course; empty means all courses
	// the learner is enrolled in.
	CourseID string
}

// Validate validates the query.
func (q *GetProgressQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("enrollment", "GetProgress", shared.ErrInvalidArgument, "user id is required")
	}
	return nil
}

// CourseProgressDTO is the progress of one learner in one course.
type CourseProgressDTO struct {
	CourseID           string   `json:"course_id"`
	TotalLessons       int      `json:"total_lessons"`
	CompletedLessons   int      `json:"completed_lessons"`
	CompletedLessonIDs []string `json:"completed_lesson_ids"`
	Percentage         int      `json:"progress_percentage"`
	CertificateSerial  string   `json:"certificate_serial,omitempty"`
}

// GetProgressResult contains progress for the requested course(s).
type GetProgressResult struct {
	Items []CourseProgressDTO
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	enrollmentRepo enrollment.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(enrollmentRepo enrollment.Repository) *GetProgressHandler {
	return &GetProgressHandler{enrollmentRepo: enrollmentRepo}
}

// Handle executes the progress query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*GetProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		items []*enrollment.Progress
		err   error
	)

	if q.CourseID != "" {
		var p *enrollment.Progress
		p, err = h.enrollmentRepo.ProgressFor(ctx, q.UserID, q.CourseID)
		if err == nil {
			items = []*enrollment.Progress{p}
		}
	} else {
		items, err = h.enrollmentRepo.ProgressAll(ctx, q.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to compute progress: %w", err)
	}

	result := &GetProgressResult{Items: make([]CourseProgressDTO, 0, len(items))}
	for _, p := range items {
		dto := CourseProgressDTO{
			CourseID:           p.CourseID,
			TotalLessons:       p.TotalLessons,
			CompletedLessons:   p.CompletedLessons,
			CompletedLessonIDs: p.CompletedLessonIDs,
			Percentage:         p.Percentage(),
			CertificateSerial:  p.CertificateSerial,
		}
		if dto.CompletedLessonIDs == nil {
			dto.CompletedLessonIDs = []string{}
		}
		result.Items = append(result.Items, dto)
	}

	return result, nil
}
