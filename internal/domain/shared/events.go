// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the course lifecycle or a learner's journey.
const (
	// User events
	EventUserRegistered EventType = "user.registered"

	// Course lifecycle events
	EventCourseCreated   EventType = "course.created"
	EventCourseUpdated   EventType = "course.updated"
	EventCourseSubmitted EventType = "course.submitted"
	EventCourseReviewed  EventType = "course.reviewed"
	EventLessonAdded     EventType = "course.lesson_added"

	// Learner progress events
	EventLearnerEnrolled   EventType = "enrollment.created"
	EventLessonCompleted   EventType = "enrollment.lesson_completed"
	EventCertificateIssued EventType = "enrollment.certificate_issued"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventPublisher publishes domain events to interested handlers.
type EventPublisher interface {
	// Publish delivers the event. Delivery failures are a handler concern;
	// publishing never fails a business operation.
	Publish(event Event) error
}

// EventHandler processes a single domain event.
type EventHandler interface {
	// Handle processes the event. Returning an error does not stop other
	// handlers; the bus logs and continues.
	Handle(event Event) error

	// Name returns a stable handler name for logging.
	Name() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// CourseReviewedEvent is published when an admin decides on a pending course.
type CourseReviewedEvent struct {
	BaseEvent
	CourseID string
	Decision string // "published" or "rejected"
	AdminID  string
}

// Payload implements Event interface.
func (e CourseReviewedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"decision":  e.Decision,
		"admin_id":  e.AdminID,
	}
}

// CourseSubmittedEvent is published when a creator submits a draft for review.
type CourseSubmittedEvent struct {
	BaseEvent
	CourseID  string
	CreatorID string
}

// Payload implements Event interface.
func (e CourseSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":  e.CourseID,
		"creator_id": e.CreatorID,
	}
}

// LearnerEnrolledEvent is published on first enrollment in a course.
type LearnerEnrolledEvent struct {
	BaseEvent
	UserID   string
	CourseID string
}

// Payload implements Event interface.
func (e LearnerEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

// CertificateIssuedEvent is published exactly once per (user, course), when
// completion reaches 100% and the certificate insert wins.
type CertificateIssuedEvent struct {
	BaseEvent
	UserID   string
	CourseID string
	Serial   string
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"serial":    e.Serial,
	}
}
