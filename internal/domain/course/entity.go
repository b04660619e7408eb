// Package course contains the course and lesson domain model, including the
// lifecycle state machine governing a course's publication status.
//
// The lifecycle only ever moves forward:
//
//	draft ──submit──▶ pending ──approve──▶ published
//	                     │
//	                  reject
//	                     ▼
//	                 rejected
//
// published and rejected are terminal; there is no resubmission path.
package course

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the publication state of a course.
type Status string

const (
	// StatusDraft - the course is being authored; only state where edits apply.
	StatusDraft Status = "draft"

	// StatusPending - submitted and awaiting admin review.
	StatusPending Status = "pending"

	// StatusPublished - approved; learners may enroll. Terminal.
	StatusPublished Status = "published"

	// StatusRejected - review declined. Terminal; no resubmission path.
	StatusRejected Status = "rejected"
)

// IsValid checks that the status is one of the four lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Decision is an admin review outcome. Its values intentionally match the
// resulting statuses.
type Decision string

const (
	// DecisionApprove publishes the course.
	DecisionApprove Decision = "published"

	// DecisionReject declines the course.
	DecisionReject Decision = "rejected"
)

// IsValid checks that the decision is one of the two review outcomes.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Status returns the course status the decision leads to.
func (d Decision) Status() Status {
	return Status(d)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course is a creator-owned sequence of lessons with a publication lifecycle.
type Course struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// Title of the course.
	Title string

	// Description shown in the catalog.
	Description string

	// CreatorID is the owning creator's user ID.
	CreatorID string

	// Status is the current lifecycle state.
	Status Status

	// CreatedAt is when the course was created.
	CreatedAt time.Time

	// UpdatedAt is when the course was last modified.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCourseNotFound - course not found.
	ErrCourseNotFound = shared.NewDomainError("course", "Find", shared.ErrNotFound, "course not found")

	// ErrLessonNotFound - lesson not found.
	ErrLessonNotFound = shared.NewDomainError("course", "FindLesson", shared.ErrNotFound, "lesson not found")

	// ErrNotCreator - the actor does not own the course.
	ErrNotCreator = shared.NewDomainError("course", "Authorize", shared.ErrForbidden, "actor is not the course creator")

	// ErrNotDraft - the operation requires a draft course.
	ErrNotDraft = shared.NewDomainError("course", "CheckStatus", shared.ErrInvalidState, "course is not in draft")

	// ErrNotPending - review requires a pending course.
	ErrNotPending = shared.NewDomainError("course", "Review", shared.ErrInvalidState, "course is not pending review")

	// ErrInvalidDecision - review decision outside {published, rejected}.
	ErrInvalidDecision = shared.NewDomainError("course", "Review", shared.ErrInvalidArgument, "decision must be published or rejected")

	// ErrStatusConflict - the stored status changed under a CAS update.
	// Concurrent transitions race; the loser surfaces as invalid state.
	ErrStatusConflict = shared.NewDomainError("course", "Transition", shared.ErrInvalidState, "course status changed concurrently")

	// ErrDuplicateOrderIndex - a lesson with the same order_index exists.
	ErrDuplicateOrderIndex = shared.NewDomainError("course", "AddLesson", shared.ErrAlreadyExists, "order index already used in course")

	// ErrInvalidTitle - title must be 1-200 chars.
	ErrInvalidTitle = errors.New("invalid title: must be 1-200 chars")

	// ErrInvalidDescription - description must not exceed 5000 chars.
	ErrInvalidDescription = errors.New("invalid description: must be at most 5000 chars")

	// ErrInvalidOrderIndex - order index must be positive.
	ErrInvalidOrderIndex = errors.New("invalid order index: must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewCourseParams contains parameters for creating a new course.
type NewCourseParams struct {
	ID          string
	Title       string
	Description string
	CreatorID   string
}

// NewCourse creates a draft course with validation of all fields.
func NewCourse(params NewCourseParams) (*Course, error) {
	if params.ID == "" {
		return nil, errors.New("course id is required")
	}
	if params.CreatorID == "" {
		return nil, errors.New("creator id is required")
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	if len(params.Description) > 5000 {
		return nil, ErrInvalidDescription
	}

	now := time.Now().UTC()

	return &Course{
		ID:          params.ID,
		Title:       title,
		Description: params.Description,
		CreatorID:   params.CreatorID,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Submit moves the course from draft to pending. Only the owning creator may
// submit, and only while the course is a draft.
func (c *Course) Submit(actorID string) error {
	if c.CreatorID != actorID {
		return ErrNotCreator
	}
	if c.Status != StatusDraft {
		return ErrNotDraft
	}

	c.Status = StatusPending
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Review applies an admin decision to a pending course. The caller is
// responsible for verifying admin capability; the entity enforces state.
func (c *Course) Review(decision Decision) error {
	if !decision.IsValid() {
		return ErrInvalidDecision
	}
	if c.Status != StatusPending {
		return ErrNotPending
	}

	c.Status = decision.Status()
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyEdit updates title and description in place. Legal only while the
// course is a draft and only for the owning creator; status is unchanged.
func (c *Course) ApplyEdit(title, description, actorID string) error {
	if c.CreatorID != actorID {
		return ErrNotCreator
	}
	if c.Status != StatusDraft {
		return ErrNotDraft
	}

	title = strings.TrimSpace(title)
	if len(title) == 0 || len(title) > 200 {
		return ErrInvalidTitle
	}
	if len(description) > 5000 {
		return ErrInvalidDescription
	}

	c.Title = title
	c.Description = description
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// IsVisibleTo reports whether the course may be shown to the given viewer.
// Published courses are visible to everyone; drafts and pending/rejected
// courses only to their creator and admins.
func (c *Course) IsVisibleTo(viewerID string, isAdmin bool) bool {
	if c.Status == StatusPublished {
		return true
	}
	return isAdmin || c.CreatorID == viewerID
}

// String returns a loggable representation of the course.
func (c *Course) String() string {
	return fmt.Sprintf("Course{ID: %s, Title: %q, Status: %s}", c.ID, c.Title, c.Status)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson is an ordered unit of course content. Lessons are immutable once
// created; order_index is unique within a course and defines the sequence.
type Lesson struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// CourseID is the owning course.
	CourseID string

	// Title of the lesson.
	Title string

	// Content is the lesson body.
	Content string

	// VideoURL is an optional video reference.
	VideoURL string

	// Transcript is an optional transcript of the video.
	Transcript string

	// OrderIndex defines the lesson's position, unique within the course.
	OrderIndex int

	// CreatedAt is when the lesson was created.
	CreatedAt time.Time
}

// NewLessonParams contains parameters for creating a new lesson.
type NewLessonParams struct {
	ID         string
	CourseID   string
	Title      string
	Content    string
	VideoURL   string
	Transcript string
	OrderIndex int
}

// NewLesson creates a lesson with validation of all fields.
func NewLesson(params NewLessonParams) (*Lesson, error) {
	if params.ID == "" {
		return nil, errors.New("lesson id is required")
	}
	if params.CourseID == "" {
		return nil, errors.New("course id is required")
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	if params.OrderIndex <= 0 {
		return nil, ErrInvalidOrderIndex
	}

	return &Lesson{
		ID:         params.ID,
		CourseID:   params.CourseID,
		Title:      title,
		Content:    params.Content,
		VideoURL:   params.VideoURL,
		Transcript: params.Transcript,
		OrderIndex: params.OrderIndex,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
