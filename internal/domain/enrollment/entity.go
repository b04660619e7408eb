// Package enrollment contains the learner-side domain model: enrollments,
// lesson completions, derived progress, and certificates. These are
// append-only facts; none of them has a deletion or revocation path.
package enrollment

import (
	"errors"
	"time"

	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment records a learner's intent to take a published course.
// Unique per (user, course); created only against a published course.
type Enrollment struct {
	// UserID is the enrolled learner.
	UserID string

	// CourseID is the course enrolled in. The course was published at
	// enrollment time; later lifecycle changes do not unwind enrollments.
	CourseID string

	// EnrolledAt is when the enrollment was created.
	EnrolledAt time.Time
}

// LessonCompletion is the fact that a learner finished a specific lesson.
// Unique per (user, lesson); inserting twice has no additional effect.
type LessonCompletion struct {
	// UserID is the learner.
	UserID string

	// LessonID is the completed lesson.
	LessonID string

	// CompletedAt is when the completion was first recorded.
	CompletedAt time.Time
}

// Certificate is a unique, non-revocable proof that a learner completed 100%
// of a course's lessons. Issued exactly once per (user, course).
type Certificate struct {
	// UserID is the certified learner.
	UserID string

	// CourseID is the completed course.
	CourseID string

	// Serial is the globally unique certificate identifier.
	Serial string

	// IssuedAt is when the certificate was issued.
	IssuedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is the derived completion state of one learner in one course.
type Progress struct {
	// CourseID is the course the progress is computed for.
	CourseID string

	// TotalLessons is the number of lessons in the course.
	TotalLessons int

	// CompletedLessons is the number of distinct lessons completed.
	CompletedLessons int

	// CompletedLessonIDs lists completed lesson IDs, sorted ascending.
	CompletedLessonIDs []string

	// CertificateSerial is the certificate identifier, empty if none issued.
	CertificateSerial string
}

// Percentage returns floor(completed * 100 / total). A course with zero
// lessons has 0% progress, never a division fault.
func (p Progress) Percentage() int {
	if p.TotalLessons == 0 {
		return 0
	}
	return p.CompletedLessons * 100 / p.TotalLessons
}

// IsComplete reports whether every lesson is completed. A zero-lesson course
// is never complete; certificates require at least one lesson.
func (p Progress) IsComplete() bool {
	return p.TotalLessons > 0 && p.CompletedLessons == p.TotalLessons
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotEnrolled - the learner holds no enrollment for the course.
	ErrNotEnrolled = shared.NewDomainError("enrollment", "Check", shared.ErrForbidden, "not enrolled in this course")

	// ErrCourseNotOpen - enrollment requires a published course. Surfaces as
	// NotFound: unpublished courses do not exist from a learner's view.
	ErrCourseNotOpen = shared.NewDomainError("enrollment", "Enroll", shared.ErrNotFound, "course not found or not published")

	// ErrCertificateNotFound - no certificate exists for the pair.
	ErrCertificateNotFound = shared.NewDomainError("enrollment", "FindCertificate", shared.ErrNotFound, "certificate not found")

	// ErrEmptyUserID - operations require a learner identity.
	ErrEmptyUserID = errors.New("user id is required")

	// ErrEmptyCourseID - operations require a course identity.
	ErrEmptyCourseID = errors.New("course id is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORIES
// ══════════════════════════════════════════════════════════════════════════════

// NewEnrollment creates an enrollment fact.
func NewEnrollment(userID, courseID string) (*Enrollment, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if courseID == "" {
		return nil, ErrEmptyCourseID
	}

	return &Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	}, nil
}

// NewLessonCompletion creates a completion fact.
func NewLessonCompletion(userID, lessonID string) (*LessonCompletion, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if lessonID == "" {
		return nil, errors.New("lesson id is required")
	}

	return &LessonCompletion{
		UserID:      userID,
		LessonID:    lessonID,
		CompletedAt: time.Now().UTC(),
	}, nil
}
