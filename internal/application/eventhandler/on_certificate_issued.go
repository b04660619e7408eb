package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CERTIFICATE ISSUED HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnCertificateIssuedHandler reacts to a newly minted certificate. It writes
// the issuance to the log with the learner's display name so operations can
// trace every serial back to a person without querying the database.
type OnCertificateIssuedHandler struct {
	userRepo user.Repository
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOnCertificateIssuedHandler creates the handler.
func NewOnCertificateIssuedHandler(userRepo user.Repository, logger *slog.Logger) *OnCertificateIssuedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnCertificateIssuedHandler{
		userRepo: userRepo,
		timeout:  5 * time.Second,
		logger:   logger.With("handler", "on_certificate_issued"),
	}
}

// Name implements shared.EventHandler.
func (h *OnCertificateIssuedHandler) Name() string {
	return "on_certificate_issued"
}

// Handle implements shared.EventHandler.
func (h *OnCertificateIssuedHandler) Handle(event shared.Event) error {
	issued, ok := event.(shared.CertificateIssuedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	displayName := ""
	if u, err := h.userRepo.GetByID(ctx, issued.UserID); err == nil {
		displayName = u.DisplayName
	}

	h.logger.Info("certificate issued",
		"user_id", issued.UserID,
		"display_name", displayName,
		"course_id", issued.CourseID,
		"serial", issued.Serial,
	)

	return nil
}
