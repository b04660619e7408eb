package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// stubCourseRepo records the filter it was called with and serves a canned
// page, so tests can assert on the visibility rules without a database.
type stubCourseRepo struct {
	lastFilter course.ListFilter
	listCalls  int
	page       []*course.Course
}

func (s *stubCourseRepo) Create(context.Context, *course.Course) error { return nil }
func (s *stubCourseRepo) UpdateDraft(context.Context, *course.Course) error {
	return nil
}
func (s *stubCourseRepo) TransitionStatus(context.Context, string, course.Status, course.Status) error {
	return nil
}

func (s *stubCourseRepo) GetByID(_ context.Context, id string) (*course.Course, error) {
	for _, c := range s.page {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, course.ErrCourseNotFound
}

func (s *stubCourseRepo) List(_ context.Context, filter course.ListFilter) ([]*course.Course, error) {
	s.lastFilter = filter
	s.listCalls++
	return s.page, nil
}

// fakeCatalogCache is an in-memory course.CatalogCache.
type fakeCatalogCache struct {
	pages map[string][]*course.Course
	sets  int
}

func newFakeCatalogCache() *fakeCatalogCache {
	return &fakeCatalogCache{pages: make(map[string][]*course.Course)}
}

func (f *fakeCatalogCache) GetPage(_ context.Context, limit, offset int) ([]*course.Course, error) {
	page, ok := f.pages[fmt.Sprintf("%d:%d", limit, offset)]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return page, nil
}

func (f *fakeCatalogCache) SetPage(_ context.Context, limit, offset int, courses []*course.Course) error {
	f.sets++
	f.pages[fmt.Sprintf("%d:%d", limit, offset)] = courses
	return nil
}

func cannedCourses(n int, status course.Status) []*course.Course {
	out := make([]*course.Course, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &course.Course{
			ID:        fmt.Sprintf("course-%d", i),
			Title:     fmt.Sprintf("Course %d", i),
			CreatorID: "creator-1",
			Status:    status,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
	}
	return out
}

func TestListCourses_LearnerSeesOnlyPublished(t *testing.T) {
	repo := &stubCourseRepo{page: cannedCourses(2, course.StatusPublished)}
	handler := NewListCoursesHandler(repo, nil)

	// A learner asking for drafts still gets the published catalog.
	result, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleLearner,
		ActorID:   "learner-1",
		Status:    course.StatusDraft,
	})
	require.NoError(t, err)

	assert.Equal(t, course.StatusPublished, repo.lastFilter.Status)
	assert.Len(t, result.Items, 2)
}

func TestListCourses_AdminFiltersAnyStatus(t *testing.T) {
	repo := &stubCourseRepo{page: cannedCourses(1, course.StatusPending)}
	handler := NewListCoursesHandler(repo, nil)

	result, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleAdmin,
		ActorID:   "admin-1",
		Status:    course.StatusPending,
	})
	require.NoError(t, err)

	assert.Equal(t, course.StatusPending, repo.lastFilter.Status)
	assert.Equal(t, "pending", result.Items[0].Status)
}

func TestListCourses_CreatorOnly(t *testing.T) {
	repo := &stubCourseRepo{}
	handler := NewListCoursesHandler(repo, nil)

	_, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole:   user.RoleCreator,
		ActorID:     "creator-1",
		CreatorOnly: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "creator-1", repo.lastFilter.CreatorID)
}

func TestListCourses_Pagination(t *testing.T) {
	// A full page signals another page may follow.
	repo := &stubCourseRepo{page: cannedCourses(5, course.StatusPublished)}
	handler := NewListCoursesHandler(repo, nil)

	result, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleLearner,
		ActorID:   "learner-1",
		Limit:     5,
		Offset:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, result.NextOffset)

	// A short page is the last one.
	repo.page = cannedCourses(3, course.StatusPublished)
	result, err = handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleLearner,
		ActorID:   "learner-1",
		Limit:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, -1, result.NextOffset)
}

func TestListCourses_ClampsPageSize(t *testing.T) {
	repo := &stubCourseRepo{}
	handler := NewListCoursesHandler(repo, nil)

	_, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleAdmin,
		ActorID:   "admin-1",
		Limit:     10_000,
		Offset:    -5,
	})
	require.NoError(t, err)

	assert.Equal(t, 100, repo.lastFilter.Limit)
	assert.Equal(t, 0, repo.lastFilter.Offset)
}

func TestListCourses_CatalogCacheFillAndHit(t *testing.T) {
	repo := &stubCourseRepo{page: cannedCourses(2, course.StatusPublished)}
	cache := newFakeCatalogCache()
	handler := NewListCoursesHandler(repo, cache)

	q := ListCoursesQuery{ActorRole: user.RoleLearner, ActorID: "learner-1", Limit: 5}

	first, err := handler.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)

	// The second read serves the cached page without touching the repository.
	second, err := handler.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first.Items, second.Items)
}

func TestListCourses_CacheSkippedForScopedListings(t *testing.T) {
	repo := &stubCourseRepo{page: cannedCourses(1, course.StatusPending)}
	cache := newFakeCatalogCache()
	handler := NewListCoursesHandler(repo, cache)

	// Moderation listings always read the repository.
	_, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleAdmin,
		ActorID:   "admin-1",
		Status:    course.StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.sets)

	// So do creator-scoped listings, even over published courses.
	repo.page = cannedCourses(1, course.StatusPublished)
	_, err = handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole:   user.RoleCreator,
		ActorID:     "creator-1",
		Status:      course.StatusPublished,
		CreatorOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.sets)
	assert.Equal(t, 2, repo.listCalls)
}

func TestListCourses_UnknownStatusFilter(t *testing.T) {
	handler := NewListCoursesHandler(&stubCourseRepo{}, nil)

	_, err := handler.Handle(context.Background(), ListCoursesQuery{
		ActorRole: user.RoleAdmin,
		ActorID:   "admin-1",
		Status:    course.Status("archived"),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
