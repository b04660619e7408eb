// Package eventhandler contains domain event handlers. Handlers are the
// reactive part of the system: they run side effects such as cache
// invalidation and notifications after a business operation commits, and
// their failures never unwind the operation that emitted the event.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE REVIEWED HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// CacheInvalidator drops cached entries by key prefix.
// Satisfied by the Redis cache.
type CacheInvalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// OnCourseReviewedHandler reacts to a review decision. An approval changes
// what the public catalog contains, so the catalog cache is dropped; both
// outcomes are logged for the audit trail.
type OnCourseReviewedHandler struct {
	cache   CacheInvalidator
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnCourseReviewedHandler creates the handler. cache may be nil when no
// cache is configured; the handler then only logs.
func NewOnCourseReviewedHandler(cache CacheInvalidator, catalogPrefix string, logger *slog.Logger) *OnCourseReviewedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnCourseReviewedHandler{
		cache:   cache,
		prefix:  catalogPrefix,
		timeout: 5 * time.Second,
		logger:  logger.With("handler", "on_course_reviewed"),
	}
}

// Name implements shared.EventHandler.
func (h *OnCourseReviewedHandler) Name() string {
	return "on_course_reviewed"
}

// Handle implements shared.EventHandler.
func (h *OnCourseReviewedHandler) Handle(event shared.Event) error {
	reviewed, ok := event.(shared.CourseReviewedEvent)
	if !ok {
		return nil
	}

	h.logger.Info("course reviewed",
		"course_id", reviewed.CourseID,
		"decision", reviewed.Decision,
		"admin_id", reviewed.AdminID,
	)

	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.DeleteByPrefix(ctx, h.prefix); err != nil {
		h.logger.Error("failed to invalidate catalog cache",
			"course_id", reviewed.CourseID,
			"error", err,
		)
		return err
	}

	return nil
}
