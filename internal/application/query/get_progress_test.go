package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// stubEnrollmentRepo serves canned progress snapshots.
type stubEnrollmentRepo struct {
	byCourse map[string]*enrollment.Progress
	certs    map[string]*enrollment.Certificate // by serial
}

func (s *stubEnrollmentRepo) Enroll(context.Context, *enrollment.Enrollment) (bool, error) {
	return false, nil
}
func (s *stubEnrollmentRepo) GetEnrollment(context.Context, string, string) (*enrollment.Enrollment, error) {
	return nil, enrollment.ErrNotEnrolled
}
func (s *stubEnrollmentRepo) ListEnrollments(context.Context, string, int, int) ([]*enrollment.Enrollment, error) {
	return nil, nil
}
func (s *stubEnrollmentRepo) CompleteLesson(context.Context, *enrollment.LessonCompletion, string, string) (*enrollment.CompletionOutcome, error) {
	return nil, nil
}

func (s *stubEnrollmentRepo) ProgressFor(_ context.Context, _, courseID string) (*enrollment.Progress, error) {
	p, ok := s.byCourse[courseID]
	if !ok {
		return nil, enrollment.ErrNotEnrolled
	}
	return p, nil
}

func (s *stubEnrollmentRepo) ProgressAll(context.Context, string) ([]*enrollment.Progress, error) {
	out := make([]*enrollment.Progress, 0, len(s.byCourse))
	for _, p := range s.byCourse {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubEnrollmentRepo) GetCertificate(context.Context, string, string) (*enrollment.Certificate, error) {
	return nil, enrollment.ErrCertificateNotFound
}

func (s *stubEnrollmentRepo) GetCertificateBySerial(_ context.Context, serial string) (*enrollment.Certificate, error) {
	c, ok := s.certs[serial]
	if !ok {
		return nil, enrollment.ErrCertificateNotFound
	}
	return c, nil
}

func TestGetProgress_SingleCourse(t *testing.T) {
	repo := &stubEnrollmentRepo{byCourse: map[string]*enrollment.Progress{
		"course-1": {
			CourseID:           "course-1",
			TotalLessons:       3,
			CompletedLessons:   1,
			CompletedLessonIDs: []string{"lesson-a"},
		},
	}}
	handler := NewGetProgressHandler(repo)

	result, err := handler.Handle(context.Background(), GetProgressQuery{UserID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, 33, item.Percentage)
	assert.Equal(t, []string{"lesson-a"}, item.CompletedLessonIDs)
	assert.Empty(t, item.CertificateSerial)
}

func TestGetProgress_AllCourses(t *testing.T) {
	repo := &stubEnrollmentRepo{byCourse: map[string]*enrollment.Progress{
		"course-1": {CourseID: "course-1", TotalLessons: 2, CompletedLessons: 2, CertificateSerial: "abc123"},
		"course-2": {CourseID: "course-2", TotalLessons: 4, CompletedLessons: 0},
	}}
	handler := NewGetProgressHandler(repo)

	result, err := handler.Handle(context.Background(), GetProgressQuery{UserID: "learner-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	byCourse := map[string]CourseProgressDTO{}
	for _, item := range result.Items {
		byCourse[item.CourseID] = item
	}
	assert.Equal(t, 100, byCourse["course-1"].Percentage)
	assert.Equal(t, "abc123", byCourse["course-1"].CertificateSerial)
	assert.Equal(t, 0, byCourse["course-2"].Percentage)

	// Nil slices are normalized so JSON shows [] instead of null.
	assert.NotNil(t, byCourse["course-2"].CompletedLessonIDs)
}

func TestGetProgress_NotEnrolled(t *testing.T) {
	handler := NewGetProgressHandler(&stubEnrollmentRepo{})

	_, err := handler.Handle(context.Background(), GetProgressQuery{UserID: "learner-1", CourseID: "course-9"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGetProgress_RequiresUser(t *testing.T) {
	handler := NewGetProgressHandler(&stubEnrollmentRepo{})

	_, err := handler.Handle(context.Background(), GetProgressQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestGetCertificate(t *testing.T) {
	repo := &stubEnrollmentRepo{certs: map[string]*enrollment.Certificate{
		"abc123": {UserID: "learner-1", CourseID: "course-1", Serial: "abc123"},
	}}
	handler := NewGetCertificateHandler(repo)

	result, err := handler.Handle(context.Background(), GetCertificateQuery{Serial: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "learner-1", result.Certificate.UserID)
	assert.Equal(t, "abc123", result.Certificate.Serial)

	_, err = handler.Handle(context.Background(), GetCertificateQuery{Serial: "missing"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = handler.Handle(context.Background(), GetCertificateQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
