package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT COURSE COMMAND
// Updates title/description of a draft. Legal only for the owning creator and
// only while the course has not been submitted; status never changes here.
// ══════════════════════════════════════════════════════════════════════════════

// EditCourseCommand contains the data to edit a draft course.
type EditCourseCommand struct {
	// ActorID is the authenticated caller; must be the course creator.
	ActorID string

	// CourseID is the course to edit.
	CourseID string

	// Title replaces the course title.
	Title string

	// Description replaces the course description.
	Description string
}

// Validate validates the command.
func (c *EditCourseCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("course", "Edit", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.CourseID == "" {
		return shared.NewDomainError("course", "Edit", shared.ErrInvalidArgument, "course id is required")
	}
	if c.Title == "" {
		return shared.NewDomainError("course", "Edit", shared.ErrInvalidArgument, "title is required")
	}
	return nil
}

// EditCourseResult contains the updated course.
type EditCourseResult struct {
	Course *course.Course
}

// EditCourseHandler handles the EditCourseCommand.
type EditCourseHandler struct {
	courseRepo course.Repository
	publisher  shared.EventPublisher
}

// NewEditCourseHandler creates a new EditCourseHandler.
func NewEditCourseHandler(courseRepo course.Repository, publisher shared.EventPublisher) *EditCourseHandler {
	return &EditCourseHandler{
		courseRepo: courseRepo,
		publisher:  publisher,
	}
}

// Handle executes the edit course command.
func (h *EditCourseHandler) Handle(ctx context.Context, cmd EditCourseCommand) (*EditCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("edit_course: failed to load course: %w", err)
	}

	if err := crs.ApplyEdit(cmd.Title, cmd.Description, cmd.ActorID); err != nil {
		return nil, err
	}

	// The store re-checks draft status on write, so a concurrent submit
	// between load and update cannot smuggle an edit into a pending course.
	if err := h.courseRepo.UpdateDraft(ctx, crs); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(courseUpdatedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventCourseUpdated, crs.ID),
			title:     crs.Title,
		})
	}

	return &EditCourseResult{Course: crs}, nil
}

type courseUpdatedEvent struct {
	shared.BaseEvent
	title string
}

func (e courseUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title": e.title,
	}
}
