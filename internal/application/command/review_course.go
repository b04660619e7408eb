package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW COURSE COMMAND
// An admin decides on a pending course: pending -> published | rejected.
// Both outcomes are terminal. The CAS status write guarantees two concurrent
// review decisions on the same course cannot both apply.
// ══════════════════════════════════════════════════════════════════════════════

// ReviewCourseCommand contains the data to review a pending course.
type ReviewCourseCommand struct {
	// ActorID is the authenticated caller; must hold the admin role.
	ActorID string

	// CourseID is the course under review.
	CourseID string

	// Decision is "published" to approve or "rejected" to decline.
	Decision course.Decision
}

// Validate validates the command.
func (c *ReviewCourseCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("course", "Review", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.CourseID == "" {
		return shared.NewDomainError("course", "Review", shared.ErrInvalidArgument, "course id is required")
	}
	if !c.Decision.IsValid() {
		return course.ErrInvalidDecision
	}
	return nil
}

// ReviewCourseResult contains the reviewed course.
type ReviewCourseResult struct {
	Course *course.Course
}

// ReviewCourseHandler handles the ReviewCourseCommand.
type ReviewCourseHandler struct {
	courseRepo course.Repository
	userRepo   user.Repository
	publisher  shared.EventPublisher
}

// NewReviewCourseHandler creates a new ReviewCourseHandler.
func NewReviewCourseHandler(courseRepo course.Repository, userRepo user.Repository, publisher shared.EventPublisher) *ReviewCourseHandler {
	return &ReviewCourseHandler{
		courseRepo: courseRepo,
		userRepo:   userRepo,
		publisher:  publisher,
	}
}

// Handle executes the review course command.
func (h *ReviewCourseHandler) Handle(ctx context.Context, cmd ReviewCourseCommand) (*ReviewCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	actor, err := h.userRepo.GetByID(ctx, cmd.ActorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, shared.WrapError("course", "Review", shared.ErrNotFound, "actor not found", err)
		}
		return nil, fmt.Errorf("review_course: failed to load actor: %w", err)
	}
	if !actor.CanReview() {
		return nil, shared.NewDomainError("course", "Review", shared.ErrForbidden, "only admins may review courses")
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("review_course: failed to load course: %w", err)
	}

	if err := crs.Review(cmd.Decision); err != nil {
		return nil, err
	}

	if err := h.courseRepo.TransitionStatus(ctx, crs.ID, course.StatusPending, cmd.Decision.Status()); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.CourseReviewedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventCourseReviewed, crs.ID),
			CourseID:  crs.ID,
			Decision:  string(cmd.Decision),
			AdminID:   actor.ID,
		})
	}

	return &ReviewCourseResult{Course: crs}, nil
}
