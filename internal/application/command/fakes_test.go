package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// In-memory repository fakes. They mirror the store contracts exactly,
// including CAS transitions and check-and-insert uniqueness, so handler
// tests exercise the same edge cases the SQL implementations produce.

// ──────────────────────────────────────────────────────────────────────────────
// users
// ──────────────────────────────────────────────────────────────────────────────

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *fakeUserRepo) add(id string, role user.Role) *user.User {
	u := &user.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "$2a$10$fake",
		DisplayName:  id,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	r.mu.Lock()
	r.users[id] = u
	r.mu.Unlock()
	return u
}

// ──────────────────────────────────────────────────────────────────────────────
// courses and lessons
// ──────────────────────────────────────────────────────────────────────────────

type fakeCourseRepo struct {
	mu      sync.Mutex
	courses map[string]*course.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: make(map[string]*course.Course)}
}

func (r *fakeCourseRepo) Create(_ context.Context, c *course.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *fakeCourseRepo) GetByID(_ context.Context, id string) (*course.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, course.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCourseRepo) UpdateDraft(_ context.Context, c *course.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[c.ID]
	if !ok {
		return course.ErrCourseNotFound
	}
	if stored.Status != course.StatusDraft {
		return course.ErrNotDraft
	}
	stored.Title = c.Title
	stored.Description = c.Description
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *fakeCourseRepo) TransitionStatus(_ context.Context, id string, from, to course.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[id]
	if !ok {
		return course.ErrCourseNotFound
	}
	if stored.Status != from {
		return course.ErrStatusConflict
	}
	stored.Status = to
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeCourseRepo) List(_ context.Context, filter course.ListFilter) ([]*course.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*course.Course
	for _, c := range r.courses {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CreatorID != "" && c.CreatorID != filter.CreatorID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeLessonRepo struct {
	mu      sync.Mutex
	lessons map[string]*course.Lesson
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{lessons: make(map[string]*course.Lesson)}
}

func (r *fakeLessonRepo) Create(_ context.Context, l *course.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.lessons {
		if existing.CourseID == l.CourseID && existing.OrderIndex == l.OrderIndex {
			return course.ErrDuplicateOrderIndex
		}
	}
	cp := *l
	r.lessons[l.ID] = &cp
	return nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id string) (*course.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, course.ErrLessonNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLessonRepo) ListByCourse(_ context.Context, courseID string, opts course.ListOptions) ([]*course.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*course.Lesson
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *fakeLessonRepo) CountByCourse(_ context.Context, courseID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// enrollments, completions, certificates
// ──────────────────────────────────────────────────────────────────────────────

type pair struct{ userID, courseID string }

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	lessonRepo  *fakeLessonRepo
	enrollments map[pair]*enrollment.Enrollment
	completions map[string]map[string]time.Time // userID -> lessonID -> at
	certs       map[pair]*enrollment.Certificate
}

func newFakeEnrollmentRepo(lessons *fakeLessonRepo) *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{
		lessonRepo:  lessons,
		enrollments: make(map[pair]*enrollment.Enrollment),
		completions: make(map[string]map[string]time.Time),
		certs:       make(map[pair]*enrollment.Certificate),
	}
}

func (r *fakeEnrollmentRepo) Enroll(_ context.Context, e *enrollment.Enrollment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pair{e.UserID, e.CourseID}
	if _, ok := r.enrollments[key]; ok {
		return false, nil
	}
	cp := *e
	r.enrollments[key] = &cp
	return true, nil
}

func (r *fakeEnrollmentRepo) GetEnrollment(_ context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[pair{userID, courseID}]
	if !ok {
		return nil, enrollment.ErrNotEnrolled
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEnrollmentRepo) ListEnrollments(_ context.Context, userID string, limit, offset int) ([]*enrollment.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*enrollment.Enrollment
	for _, e := range r.enrollments {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) CompleteLesson(ctx context.Context, c *enrollment.LessonCompletion, courseID, serial string) (*enrollment.CompletionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byLesson, ok := r.completions[c.UserID]
	if !ok {
		byLesson = make(map[string]time.Time)
		r.completions[c.UserID] = byLesson
	}
	recorded := false
	if _, done := byLesson[c.LessonID]; !done {
		byLesson[c.LessonID] = c.CompletedAt
		recorded = true
	}

	total, completed := r.countLocked(c.UserID, courseID)

	outcome := &enrollment.CompletionOutcome{
		Recorded:         recorded,
		CompletedLessons: completed,
		TotalLessons:     total,
	}

	p := enrollment.Progress{TotalLessons: total, CompletedLessons: completed}
	if p.IsComplete() {
		key := pair{c.UserID, courseID}
		if _, has := r.certs[key]; !has {
			r.certs[key] = &enrollment.Certificate{
				UserID:   c.UserID,
				CourseID: courseID,
				Serial:   serial,
				IssuedAt: time.Now().UTC(),
			}
			outcome.CertificateIssued = true
		}
		cp := *r.certs[key]
		outcome.Certificate = &cp
	}

	return outcome, nil
}

func (r *fakeEnrollmentRepo) ProgressFor(_ context.Context, userID, courseID string) (*enrollment.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enrollments[pair{userID, courseID}]; !ok {
		return nil, enrollment.ErrNotEnrolled
	}
	return r.progressLocked(userID, courseID), nil
}

func (r *fakeEnrollmentRepo) ProgressAll(_ context.Context, userID string) ([]*enrollment.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*enrollment.Progress
	for key := range r.enrollments {
		if key.userID == userID {
			out = append(out, r.progressLocked(userID, key.courseID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (r *fakeEnrollmentRepo) GetCertificate(_ context.Context, userID, courseID string) (*enrollment.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[pair{userID, courseID}]
	if !ok {
		return nil, enrollment.ErrCertificateNotFound
	}
	cp := *cert
	return &cp, nil
}

func (r *fakeEnrollmentRepo) GetCertificateBySerial(_ context.Context, serial string) (*enrollment.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cert := range r.certs {
		if cert.Serial == serial {
			cp := *cert
			return &cp, nil
		}
	}
	return nil, enrollment.ErrCertificateNotFound
}

func (r *fakeEnrollmentRepo) countLocked(userID, courseID string) (total, completed int) {
	r.lessonRepo.mu.Lock()
	defer r.lessonRepo.mu.Unlock()
	done := r.completions[userID]
	for _, l := range r.lessonRepo.lessons {
		if l.CourseID != courseID {
			continue
		}
		total++
		if _, ok := done[l.ID]; ok {
			completed++
		}
	}
	return total, completed
}

func (r *fakeEnrollmentRepo) progressLocked(userID, courseID string) *enrollment.Progress {
	p := &enrollment.Progress{
		CourseID:           courseID,
		CompletedLessonIDs: []string{},
	}
	r.lessonRepo.mu.Lock()
	done := r.completions[userID]
	for _, l := range r.lessonRepo.lessons {
		if l.CourseID != courseID {
			continue
		}
		p.TotalLessons++
		if _, ok := done[l.ID]; ok {
			p.CompletedLessons++
			p.CompletedLessonIDs = append(p.CompletedLessonIDs, l.ID)
		}
	}
	r.lessonRepo.mu.Unlock()
	sort.Strings(p.CompletedLessonIDs)
	if cert, ok := r.certs[pair{userID, courseID}]; ok {
		p.CertificateSerial = cert.Serial
	}
	return p
}

// ──────────────────────────────────────────────────────────────────────────────
// event capture
// ──────────────────────────────────────────────────────────────────────────────

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
