package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COURSE COMMAND
// A creator starts a new course. Courses are born as drafts.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand contains the data to create a course.
type CreateCourseCommand struct {
	// ActorID is the authenticated caller; must hold the creator role.
	ActorID string

	// Title of the course.
	Title string

	// Description shown in the catalog.
	Description string
}

// Validate validates the command.
func (c *CreateCourseCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("course", "Create", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.Title == "" {
		return shared.NewDomainError("course", "Create", shared.ErrInvalidArgument, "title is required")
	}
	if c.Description == "" {
		return shared.NewDomainError("course", "Create", shared.ErrInvalidArgument, "description is required")
	}
	return nil
}

// CreateCourseResult contains the created draft.
type CreateCourseResult struct {
	Course *course.Course
}

// CreateCourseHandler handles the CreateCourseCommand.
type CreateCourseHandler struct {
	courseRepo course.Repository
	userRepo   user.Repository
	publisher  shared.EventPublisher
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(courseRepo course.Repository, userRepo user.Repository, publisher shared.EventPublisher) *CreateCourseHandler {
	return &CreateCourseHandler{
		courseRepo: courseRepo,
		userRepo:   userRepo,
		publisher:  publisher,
	}
}

// Handle executes the create course command.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*CreateCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	actor, err := h.userRepo.GetByID(ctx, cmd.ActorID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, shared.WrapError("course", "Create", shared.ErrNotFound, "actor not found", err)
		}
		return nil, fmt.Errorf("create_course: failed to load actor: %w", err)
	}
	if !actor.CanCreateCourses() {
		return nil, shared.NewDomainError("course", "Create", shared.ErrForbidden, "only creators may create courses")
	}

	crs, err := course.NewCourse(course.NewCourseParams{
		ID:          uuid.NewString(),
		Title:       cmd.Title,
		Description: cmd.Description,
		CreatorID:   actor.ID,
	})
	if err != nil {
		return nil, shared.WrapError("course", "Create", shared.ErrInvalidArgument, "invalid course", err)
	}

	if err := h.courseRepo.Create(ctx, crs); err != nil {
		return nil, fmt.Errorf("create_course: failed to store course: %w", err)
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(courseCreatedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventCourseCreated, crs.ID),
			creatorID: crs.CreatorID,
			title:     crs.Title,
		})
	}

	return &CreateCourseResult{Course: crs}, nil
}

type courseCreatedEvent struct {
	shared.BaseEvent
	creatorID string
	title     string
}

func (e courseCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"creator_id": e.creatorID,
		"title":      e.title,
	}
}
