package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE LESSON COMMAND
// The creator adds an ordered lesson to their own draft course. Lessons are
// immutable once created; order_index is unique within the course.
// ══════════════════════════════════════════════════════════════════════════════

// CreateLessonCommand contains the data to add a lesson.
type CreateLessonCommand struct {
	// ActorID is the authenticated caller; must be the course creator.
	ActorID string

	// CourseID is the draft course to add the lesson to.
	CourseID string

	// Title of the lesson.
	Title string

	// Content is the lesson body.
	Content string

	// VideoURL is an optional video reference.
	VideoURL string

	// Transcript is an optional transcript.
	Transcript string

	// OrderIndex is the lesson's position in the course sequence.
	OrderIndex int
}

// Validate validates the command.
func (c *CreateLessonCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("course", "AddLesson", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.CourseID == "" {
		return shared.NewDomainError("course", "AddLesson", shared.ErrInvalidArgument, "course id is required")
	}
	if c.Title == "" {
		return shared.NewDomainError("course", "AddLesson", shared.ErrInvalidArgument, "title is required")
	}
	if c.OrderIndex <= 0 {
		return shared.NewDomainError("course", "AddLesson", shared.ErrInvalidArgument, "order index must be positive")
	}
	return nil
}

// CreateLessonResult contains the created lesson.
type CreateLessonResult struct {
	Lesson *course.Lesson
}

// CreateLessonHandler handles the CreateLessonCommand.
type CreateLessonHandler struct {
	courseRepo course.Repository
	lessonRepo course.LessonRepository
	publisher  shared.EventPublisher
}

// NewCreateLessonHandler creates a new CreateLessonHandler.
func NewCreateLessonHandler(courseRepo course.Repository, lessonRepo course.LessonRepository, publisher shared.EventPublisher) *CreateLessonHandler {
	return &CreateLessonHandler{
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
		publisher:  publisher,
	}
}

// Handle executes the create lesson command.
func (h *CreateLessonHandler) Handle(ctx context.Context, cmd CreateLessonCommand) (*CreateLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("create_lesson: failed to load course: %w", err)
	}

	if crs.CreatorID != cmd.ActorID {
		return nil, course.ErrNotCreator
	}
	if crs.Status != course.StatusDraft {
		return nil, course.ErrNotDraft
	}

	lesson, err := course.NewLesson(course.NewLessonParams{
		ID:         uuid.NewString(),
		CourseID:   crs.ID,
		Title:      cmd.Title,
		Content:    cmd.Content,
		VideoURL:   cmd.VideoURL,
		Transcript: cmd.Transcript,
		OrderIndex: cmd.OrderIndex,
	})
	if err != nil {
		return nil, shared.WrapError("course", "AddLesson", shared.ErrInvalidArgument, "invalid lesson", err)
	}

	if err := h.lessonRepo.Create(ctx, lesson); err != nil {
		return nil, err
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(lessonAddedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLessonAdded, crs.ID),
			lessonID:  lesson.ID,
			index:     lesson.OrderIndex,
		})
	}

	return &CreateLessonResult{Lesson: lesson}, nil
}

type lessonAddedEvent struct {
	shared.BaseEvent
	lessonID string
	index    int
}

func (e lessonAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":   e.lessonID,
		"order_index": e.index,
	}
}
