package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// A learner marks a lesson done. The store records the completion, recounts
// the course, and issues the certificate at 100% - all in one atomic unit, so
// a crash mid-sequence cannot leave a completion without its recount, and a
// race between two final completions issues at most one certificate.
//
// Completing the same lesson twice is an idempotent success: the second call
// returns the same progress and creates no second row.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the data to record a completion.
type CompleteLessonCommand struct {
	// ActorID is the authenticated learner.
	ActorID string

	// LessonID is the lesson being completed.
	LessonID string
}

// Validate validates the command.
func (c *CompleteLessonCommand) Validate() error {
	if c.ActorID == "" {
		return shared.NewDomainError("enrollment", "CompleteLesson", shared.ErrInvalidArgument, "actor id is required")
	}
	if c.LessonID == "" {
		return shared.NewDomainError("enrollment", "CompleteLesson", shared.ErrInvalidArgument, "lesson id is required")
	}
	return nil
}

// CompleteLessonResult contains the completion outcome.
type CompleteLessonResult struct {
	// CourseID is the course the lesson belongs to.
	CourseID string

	// CompletedLessons and TotalLessons describe progress after this call.
	CompletedLessons int
	TotalLessons     int

	// Percentage is floor(completed * 100 / total).
	Percentage int

	// CertificateSerial is set when a certificate exists for the pair.
	CertificateSerial string

	// CertificateIssued is true only when this call issued the certificate.
	CertificateIssued bool
}

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	lessonRepo     course.LessonRepository
	enrollmentRepo enrollment.Repository
	publisher      shared.EventPublisher
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(
	lessonRepo course.LessonRepository,
	enrollmentRepo enrollment.Repository,
	publisher shared.EventPublisher,
) *CompleteLessonHandler {
	return &CompleteLessonHandler{
		lessonRepo:     lessonRepo,
		enrollmentRepo: enrollmentRepo,
		publisher:      publisher,
	}
}

// Handle executes the complete lesson command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.lessonRepo.GetByID(ctx, cmd.LessonID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrLessonNotFound
		}
		return nil, fmt.Errorf("complete_lesson: failed to load lesson: %w", err)
	}

	// The learner must hold an enrollment in the lesson's course.
	if _, err := h.enrollmentRepo.GetEnrollment(ctx, cmd.ActorID, lesson.CourseID); err != nil {
		if errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrNotFound) {
			return nil, enrollment.ErrNotEnrolled
		}
		return nil, fmt.Errorf("complete_lesson: failed to check enrollment: %w", err)
	}

	completion, err := enrollment.NewLessonCompletion(cmd.ActorID, lesson.ID)
	if err != nil {
		return nil, shared.WrapError("enrollment", "CompleteLesson", shared.ErrInvalidArgument, "invalid completion", err)
	}

	// The serial is generated eagerly; the store uses it only if this call
	// wins the certificate insert.
	serial := enrollment.NewSerial(cmd.ActorID, lesson.CourseID)

	outcome, err := h.enrollmentRepo.CompleteLesson(ctx, completion, lesson.CourseID, serial)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to record completion: %w", err)
	}

	result := &CompleteLessonResult{
		CourseID:         lesson.CourseID,
		CompletedLessons: outcome.CompletedLessons,
		TotalLessons:     outcome.TotalLessons,
	}
	progress := enrollment.Progress{
		TotalLessons:     outcome.TotalLessons,
		CompletedLessons: outcome.CompletedLessons,
	}
	result.Percentage = progress.Percentage()

	if outcome.Certificate != nil {
		result.CertificateSerial = outcome.Certificate.Serial
		result.CertificateIssued = outcome.CertificateIssued
	}

	if h.publisher != nil {
		if outcome.Recorded {
			_ = h.publisher.Publish(lessonCompletedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventLessonCompleted, lesson.CourseID),
				userID:    cmd.ActorID,
				lessonID:  lesson.ID,
			})
		}
		if outcome.CertificateIssued {
			_ = h.publisher.Publish(shared.CertificateIssuedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventCertificateIssued, lesson.CourseID),
				UserID:    cmd.ActorID,
				CourseID:  lesson.CourseID,
				Serial:    outcome.Certificate.Serial,
			})
		}
	}

	return result, nil
}

type lessonCompletedEvent struct {
	shared.BaseEvent
	userID   string
	lessonID string
}

func (e lessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.userID,
		"lesson_id": e.lessonID,
	}
}
