package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcourses/microcourses/internal/domain/shared"
)

type recordingHandler struct {
	mu     sync.Mutex
	name   string
	events []shared.Event
	err    error
}

func (h *recordingHandler) Handle(event shared.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func syncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func TestEventBus_PublishToSubscriber(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	handler := &recordingHandler{name: "reviews"}
	require.NoError(t, bus.Subscribe(shared.EventCourseReviewed, handler))

	event := shared.CourseReviewedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventCourseReviewed, "course-1"),
		CourseID:  "course-1",
		Decision:  "published",
		AdminID:   "admin-1",
	}
	require.NoError(t, bus.Publish(event))

	require.Equal(t, 1, handler.count())
	got, ok := handler.events[0].(shared.CourseReviewedEvent)
	require.True(t, ok)
	assert.Equal(t, "published", got.Decision)
}

func TestEventBus_TypeFiltering(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	reviews := &recordingHandler{name: "reviews"}
	certs := &recordingHandler{name: "certs"}
	all := &recordingHandler{name: "all"}

	require.NoError(t, bus.Subscribe(shared.EventCourseReviewed, reviews))
	require.NoError(t, bus.Subscribe(shared.EventCertificateIssued, certs))
	require.NoError(t, bus.SubscribeAll(all))

	require.NoError(t, bus.Publish(shared.CertificateIssuedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventCertificateIssued, "course-1"),
		UserID:    "user-1",
		CourseID:  "course-1",
		Serial:    "abc123",
	}))

	assert.Equal(t, 0, reviews.count())
	assert.Equal(t, 1, certs.count())
	assert.Equal(t, 1, all.count())
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	failing := &recordingHandler{name: "failing", err: errors.New("boom")}
	healthy := &recordingHandler{name: "healthy"}

	require.NoError(t, bus.Subscribe(shared.EventCourseReviewed, failing))
	require.NoError(t, bus.Subscribe(shared.EventCourseReviewed, healthy))

	err := bus.Publish(shared.CourseReviewedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventCourseReviewed, "course-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, healthy.count())
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	handler := &recordingHandler{name: "async"}
	require.NoError(t, bus.Subscribe(shared.EventLearnerEnrolled, handler))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.LearnerEnrolledEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLearnerEnrolled, "course-1"),
			UserID:    "user-1",
			CourseID:  "course-1",
		}))
	}

	// Closing before delivery finishes may drop queued handlers, so wait
	// for delivery first.
	require.Eventually(t, func() bool { return handler.count() == 5 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Close())
}

func TestEventBus_ClosedRejectsPublish(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.CourseReviewedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventCourseReviewed, "course-1"),
	})
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventCourseReviewed, &recordingHandler{name: "late"})
	assert.ErrorIs(t, err, ErrEventBusClosed)
}
