package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// A learner enrolls in a published course. The (user, course) pair is unique;
// a duplicate enrollment is an idempotent success. Courses that exist but are
// not published are reported as NotFound - from a learner's point of view an
// unpublished course does not exist.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand contains the data to enroll a learner.
type EnrollCommand struct {
	// ActorID is the authenticated caller; must hold the learner role.
	ActorID string

	// CourseID is the course to enroll in.
	CourseID string
}

// Validate validates the command.
func (c *EnrollCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("enrollment", "Enroll", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.CourseID == "" {
		return shared.NewDomainError("enrollment", "Enroll", shared.ErrInvalidArgument, "course id is required")
	}
	return nil
}

// EnrollResult contains the enrollment outcome.
type EnrollResult struct {
	Enrollment *enrollment.Enrollment

	// Created is false when the learner was already enrolled.
	Created bool
}

// EnrollHandler handles the EnrollCommand.
type EnrollHandler struct {
	courseRepo     course.Repository
	enrollmentRepo enrollment.Repository
	userRepo       user.Repository
	publisher      shared.EventPublisher
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(
	courseRepo course.Repository,
	enrollmentRepo enrollment.Repository,
	userRepo user.Repository,
	publisher shared.EventPublisher,
) *EnrollHandler {
	return &EnrollHandler{
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		publisher:      publisher,
	}
}

// Handle executes the enroll command.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	actor, err := h.userRepo.GetByID(ctx, cmd.ActorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, shared.WrapError("enrollment", "Enroll", shared.ErrNotFound, "actor not found", err)
		}
		return nil, fmt.Errorf("enroll: failed to load actor: %w", err)
	}
	if !actor.CanEnroll() {
		return nil, shared.NewDomainError("enrollment", "Enroll", shared.ErrForbidden, "only learners may enroll")
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, enrollment.ErrCourseNotOpen
		}
		return nil, fmt.Errorf("enroll: failed to load course: %w", err)
	}
	if crs.Status != course.StatusPublished {
		return nil, enrollment.ErrCourseNotOpen
	}

	enr, err := enrollment.NewEnrollment(actor.ID, crs.ID)
	if err != nil {
		return nil, shared.WrapError("enrollment", "Enroll", shared.ErrInvalidArgument, "invalid enrollment", err)
	}

	created, err := h.enrollmentRepo.Enroll(ctx, enr)
	if err != nil {
		return nil, fmt.Errorf("enroll: failed to store enrollment: %w", err)
	}

	if created && h.publisher != nil {
		_ = h.publisher.Publish(shared.LearnerEnrolledEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLearnerEnrolled, crs.ID),
			UserID:    actor.ID,
			CourseID:  crs.ID,
		})
	}

	return &EnrollResult{Enrollment: enr, Created: created}, nil
}
