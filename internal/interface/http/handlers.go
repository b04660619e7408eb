package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/microcourses/microcourses/internal/application/command"
	"github.com/microcourses/microcourses/internal/application/query"
	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON decodes a request body into dst. Unknown fields are rejected so
// typos in payloads fail loudly instead of silently defaulting.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & META
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type checkResult struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	check := func(ping func(ctx context.Context) error) checkResult {
		if ping == nil {
			return checkResult{Status: "disabled"}
		}
		if err := ping(ctx); err != nil {
			return checkResult{Status: "unhealthy", Error: err.Error()}
		}
		return checkResult{Status: "healthy"}
	}

	db := check(s.deps.PingDB)
	cache := check(s.deps.PingCache)

	status := http.StatusOK
	overall := "healthy"
	if db.Status == "unhealthy" || cache.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": map[string]checkResult{
			"database": db,
			"cache":    cache,
		},
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":           "microcourses",
		"version":        s.config.Version,
		"uptime_seconds": int(s.Uptime().Seconds()),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

type userDTO struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserDTO(u *user.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := s.deps.RegisterUserHandler.Handle(r.Context(), command.RegisterUserCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        user.Role(req.Role),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := s.deps.Tokens.Sign(result.User.ID, string(result.User.Role))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":  toUserDTO(result.User),
		"token": token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Email and password are required")
		return
	}

	u, err := s.deps.UserRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		if errors.Is(err, user.ErrUserNotFound) {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
			return
		}
		writeDomainError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}

	token, err := s.deps.Tokens.Sign(u.ID, string(u.Role))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  toUserDTO(u),
		"token": token,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.ListCoursesHandler.Handle(r.Context(), query.ListCoursesQuery{
		ActorID:     identity.UserID,
		ActorRole:   user.Role(identity.Role),
		Status:      course.Status(r.URL.Query().Get("status")),
		CreatorOnly: r.URL.Query().Get("mine") == "true",
		Limit:       getQueryParamInt(r, "limit", 0),
		Offset:      getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONPage(w, http.StatusOK, result.Items, result.NextOffset)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.GetCourseHandler.Handle(r.Context(), query.GetCourseQuery{
		CourseID:  r.PathValue("id"),
		ActorID:   identity.UserID,
		ActorRole: user.Role(identity.Role),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Course)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := s.deps.CreateCourseHandler.Handle(r.Context(), command.CreateCourseCommand{
		ActorID:     identity.UserID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCourseDTO(result.Course))
}

func (s *Server) handleEditCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := s.deps.EditCourseHandler.Handle(r.Context(), command.EditCourseCommand{
		ActorID:     identity.UserID,
		CourseID:    r.PathValue("id"),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseDTO(result.Course))
}

func (s *Server) handleSubmitCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.SubmitCourseHandler.Handle(r.Context(), command.SubmitCourseCommand{
		ActorID:  identity.UserID,
		CourseID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseDTO(result.Course))
}

func (s *Server) handleReviewCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		Decision string `json:"decision"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := s.deps.ReviewCourseHandler.Handle(r.Context(), command.ReviewCourseCommand{
		ActorID:  identity.UserID,
		CourseID: r.PathValue("id"),
		Decision: course.Decision(req.Decision),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseDTO(result.Course))
}

func toCourseDTO(c *course.Course) query.CourseDTO {
	return query.CourseDTO{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		CreatorID:   c.CreatorID,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.ListLessonsHandler.Handle(r.Context(), query.ListLessonsQuery{
		CourseID:  r.PathValue("id"),
		ActorID:   identity.UserID,
		ActorRole: user.Role(identity.Role),
		Limit:     getQueryParamInt(r, "limit", 0),
		Offset:    getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONPage(w, http.StatusOK, result.Items, result.NextOffset)
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		Title      string `json:"title"`
		Content    string `json:"content"`
		VideoURL   string `json:"video_url"`
		Transcript string `json:"transcript"`
		OrderIndex int    `json:"order_index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	result, err := s.deps.CreateLessonHandler.Handle(r.Context(), command.CreateLessonCommand{
		ActorID:    identity.UserID,
		CourseID:   r.PathValue("id"),
		Title:      req.Title,
		Content:    req.Content,
		VideoURL:   req.VideoURL,
		Transcript: req.Transcript,
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	l := result.Lesson
	writeJSON(w, http.StatusCreated, query.LessonDTO{
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

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.CompleteLessonHandler.Handle(r.Context(), command.CompleteLessonCommand{
		ActorID:  identity.UserID,
		LessonID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course_id":           result.CourseID,
		"completed_lessons":   result.CompletedLessons,
		"total_lessons":       result.TotalLessons,
		"progress_percentage": result.Percentage,
		"certificate_serial":  result.CertificateSerial,
		"certificate_issued":  result.CertificateIssued,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT & PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.EnrollHandler.Handle(r.Context(), command.EnrollCommand{
		ActorID:  identity.UserID,
		CourseID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Re-enrolling is an idempotent success, reported as 200 instead of 201.
	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}

	writeJSON(w, status, query.EnrollmentDTO{
		UserID:     result.Enrollment.UserID,
		CourseID:   result.Enrollment.CourseID,
		EnrolledAt: result.Enrollment.EnrolledAt,
	})
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.ListEnrollmentsHandler.Handle(r.Context(), query.ListEnrollmentsQuery{
		UserID: identity.UserID,
		Limit:  getQueryParamInt(r, "limit", 0),
		Offset: getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONPage(w, http.StatusOK, result.Items, result.NextOffset)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		UserID: identity.UserID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Items)
}

func (s *Server) handleGetCourseProgress(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		UserID:   identity.UserID,
		CourseID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if len(result.Items) == 0 {
		writeJSONError(w, http.StatusNotFound, "not_found", "No progress for this course")
		return
	}

	writeJSON(w, http.StatusOK, result.Items[0])
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetCertificateHandler.Handle(r.Context(), query.GetCertificateQuery{
		Serial: r.PathValue("serial"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Certificate)
}
