package query

import (
	"context"
	"time"

	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CERTIFICATE QUERY
// Looks up a certificate by its serial. Public: anyone holding a serial can
// verify that it is genuine and see who earned it for which course.
// ══════════════════════════════════════════════════════════════════════════════

// GetCertificateQuery contains the parameters for a certificate lookup.
type GetCertificateQuery struct {
	// Serial is the certificate serial to verify.
	Serial string
}

// Validate validates the query.
func (q *GetCertificateQuery) Validate() error {
	if q.Serial == "" {
		return shared.NewDomainError("enrollment", "GetCertificate", shared.ErrInvalidArgument, "serial is required")
	}
	return nil
}

// CertificateDTO is the API representation of a certificate.
type CertificateDTO struct {
	UserID   string    `json:"user_id"`
	CourseID string    `json:"course_id"`
	Serial   string    `json:"serial"`
	IssuedAt time.Time `json:"issued_at"`
}

// GetCertificateResult contains the certificate.
type GetCertificateResult struct {
	Certificate CertificateDTO
}

// GetCertificateHandler handles the GetCertificateQuery.
type GetCertificateHandler struct {
	enrollmentRepo enrollment.Repository
}

// NewGetCertificateHandler creates a new GetCertificateHandler.
func NewGetCertificateHandler(enrollmentRepo enrollment.Repository) *GetCertificateHandler {
	return &GetCertificateHandler{enrollmentRepo: enrollmentRepo}
}

// Handle executes the certificate lookup.
func (h *GetCertificateHandler) Handle(ctx context.Context, q GetCertificateQuery) (*GetCertificateResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cert, err := h.enrollmentRepo.GetCertificateBySerial(ctx, q.Serial)
	if err != nil {
		return nil, err
	}

	return &GetCertificateResult{
		Certificate: CertificateDTO{
			UserID:   cert.UserID,
			CourseID: cert.CourseID,
			Serial:   cert.Serial,
			IssuedAt: cert.IssuedAt,
		},
	}, nil
}
