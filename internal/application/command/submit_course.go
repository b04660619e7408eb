package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT COURSE COMMAND
// The creator submits a draft for admin review: draft -> pending. The status
// write is a compare-and-swap so concurrent submits apply at most once.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitCourseCommand contains the data to submit a course for review.
type SubmitCourseCommand struct {
	// ActorID is the authenticated caller; must be the course creator.
	ActorID string

	// CourseID is the course to submit.
	CourseID string
}

// Validate validates the command.
func (c *SubmitCourseCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("course", "Submit", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.CourseID == "" {
		return shared.NewDomainError("course", "Submit", shared.ErrInvalidArgument, "course id is required")
	}
	return nil
}

// SubmitCourseResult contains the submitted course.
type SubmitCourseResult struct {
	Course *course.Course
}

// SubmitCourseHandler handles the SubmitCourseCommand.
type SubmitCourseHandler struct {
	courseRepo course.Repository
	publisher  shared.EventPublisher
}

// NewSubmitCourseHandler creates a new SubmitCourseHandler.
func NewSubmitCourseHandler(courseRepo course.Repository, publisher shared.EventPublisher) *SubmitCourseHandler {
	return &SubmitCourseHandler{
		courseRepo: courseRepo,
		publisher:  publisher,
	}
}

// Handle executes the submit course command.
func (h *SubmitCourseHandler) Handle(ctx context.Context, cmd SubmitCourseCommand) (*SubmitCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("submit_course: failed to load course: %w", err)
	}

	// Entity-level checks: ownership and draft status.
	if err := crs.Submit(cmd.ActorID); err != nil {
		return nil, err
	}

	// CAS write: only applies if the stored status is still draft.
	if err := h.courseRepo.TransitionStatus(ctx, crs.ID, course.StatusDraft, course.StatusPending); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.CourseSubmittedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventCourseSubmitted, crs.ID),
			CourseID:  crs.ID,
			CreatorID: crs.CreatorID,
		})
	}

	return &SubmitCourseResult{Course: crs}, nil
}
