package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST LESSONS QUERY
// Returns a course's lessons in order. Learners must hold an enrollment in
// the course; creators see their own courses, admins see everything.
// ══════════════════════════════════════════════════════════════════════════════

// ListLessonsQuery contains the parameters for a lesson listing.
type ListLessonsQuery struct {
	// CourseID is the course whose lessons are requested.
	CourseID string

	// ActorID and ActorRole identify the authenticated viewer.
	ActorID   string
	ActorRole user.Role

	// Limit and Offset control pagination.
	Limit  int
	Offset int
}

// Validate validates the query.
func (q *ListLessonsQuery) Validate() error {
	if q.CourseID == "" {
		return shared.NewDomainError("course", "ListLessons", shared.ErrInvalidArgument, "course id is required")
	}
	if q.ActorID == "" {
		return shared.NewDomainError("course", "ListLessons", shared.ErrInvalidArgument, "actor id is required")
	}
	return nil
}

// LessonDTO is the API representation of a lesson.
type LessonDTO struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	VideoURL   string    `json:"video_url,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListLessonsResult contains one page of lessons in course order.
type ListLessonsResult struct {
	Items      []LessonDTO
	NextOffset int
}

// ListLessonsHandler handles the ListLessonsQuery.
type ListLessonsHandler struct {
	courseRepo     course.Repository
	lessonRepo     course.LessonRepository
	enrollmentRepo enrollment.Repository
}

// NewListLessonsHandler creates a new ListLessonsHandler.
func NewListLessonsHandler(
	courseRepo course.Repository,
	lessonRepo course.LessonRepository,
	enrollmentRepo enrollment.Repository,
) *ListLessonsHandler {
	return &ListLessonsHandler{
		courseRepo:     courseRepo,
		lessonRepo:     lessonRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Handle executes the list lessons query.
func (h *ListLessonsHandler) Handle(ctx context.Context, q ListLessonsQuery) (*ListLessonsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, q.CourseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, course.ErrCourseNotFound
		}
		return nil, fmt.Errorf("list_lessons: failed to load course: %w", err)
	}

	// Learners may only fetch lessons of courses they are enrolled in.
	if q.ActorRole == user.RoleLearner {
		if _, err := h.enrollmentRepo.GetEnrollment(ctx, q.ActorID, crs.ID); err != nil {
			if errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrNotFound) {
				return nil, enrollment.ErrNotEnrolled
			}
			return nil, fmt.Errorf("list_lessons: failed to check enrollment: %w", err)
		}
	} else if !crs.IsVisibleTo(q.ActorID, q.ActorRole == user.RoleAdmin) {
		return nil, shared.NewDomainError("course", "ListLessons", shared.ErrForbidden, "course not available")
	}

	opts := course.ListOptions{Limit: q.Limit, Offset: q.Offset}
	opts.Normalize(50, 200)

	lessons, err := h.lessonRepo.ListByCourse(ctx, crs.ID, opts)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: failed to list: %w", err)
	}

	result := &ListLessonsResult{
		Items:      make([]LessonDTO, 0, len(lessons)),
		NextOffset: -1,
	}
	for _, l := range lessons {
		result.Items = append(result.Items, LessonDTO{
			ID:         l.ID,
			CourseID:   l.CourseID,
			Title:      l.Title,
			Content:    l.Content,
			VideoURL:   l.VideoURL,
			Transcript: l.Transcript,
			OrderIndex: l.OrderIndex,
			CreatedAt:  l.CreatedAt,
		})
	}
	if len(lessons) == opts.Limit {
		result.NextOffset = opts.Offset + opts.Limit
	}

	return result, nil
}
