package enrollment

import (
	"context"
)

// CompletionOutcome is the result of recording a lesson completion together
// with the recount-and-issue step that follows it.
type CompletionOutcome struct {
	// Recorded is true if this call inserted the completion, false if the
	// completion already existed (idempotent replay).
	Recorded bool

	// CompletedLessons is the learner's distinct completion count for the
	// course after this call.
	CompletedLessons int

	// TotalLessons is the course's lesson count.
	TotalLessons int

	// Certificate is the certificate for the pair if one exists after this
	// call, nil otherwise.
	Certificate *Certificate

	// CertificateIssued is true only when this call won the certificate
	// insert. A concurrent duplicate sees the certificate but not the flag.
	CertificateIssued bool
}

// Repository defines the storage contract for enrollments, completions, and
// certificates.
//
// Uniqueness of the (user, course), (user, lesson), and certificate pairs is
// enforced by the store itself via atomic check-and-insert, not by
// application-level locking: concurrent duplicate inserts must both succeed,
// with exactly one row existing afterward.
type Repository interface {
	// Enroll inserts an enrollment if absent. Returns created=false when the
	// pair already exists; that is an idempotent success, not an error.
	Enroll(ctx context.Context, e *Enrollment) (created bool, err error)

	// GetEnrollment returns the enrollment for the pair.
	// Returns ErrNotEnrolled if absent.
	GetEnrollment(ctx context.Context, userID, courseID string) (*Enrollment, error)

	// ListEnrollments returns the learner's enrollments, newest first.
	ListEnrollments(ctx context.Context, userID string, limit, offset int) ([]*Enrollment, error)

	// CompleteLesson records a completion and, in the same atomic unit,
	// recounts the course and issues the certificate when the count reaches
	// 100%. The serial is used only if this call wins the certificate
	// insert; a losing insert silently no-ops and the existing certificate
	// is returned. A crash cannot leave a completion without its recount.
	CompleteLesson(ctx context.Context, c *LessonCompletion, courseID, serial string) (*CompletionOutcome, error)

	// ProgressFor returns the learner's progress in one course, computed
	// from a consistent snapshot of completions.
	// Returns ErrNotEnrolled if the pair has no enrollment.
	ProgressFor(ctx context.Context, userID, courseID string) (*Progress, error)

	// ProgressAll returns the learner's progress across all enrolled
	// courses, one entry per enrollment, computed from a single consistent
	// snapshot.
	ProgressAll(ctx context.Context, userID string) ([]*Progress, error)

	// GetCertificate returns the certificate for the pair.
	// Returns ErrCertificateNotFound if absent.
	GetCertificate(ctx context.Context, userID, courseID string) (*Certificate, error)

	// GetCertificateBySerial returns a certificate by its serial.
	// Returns ErrCertificateNotFound if absent.
	GetCertificateBySerial(ctx context.Context, serial string) (*Certificate, error)
}
