// Package http implements the REST API for MicroCourses: authentication,
// course authoring and moderation, enrollment, progress, and certificate
// verification endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/microcourses/microcourses/internal/application/command"
	"github.com/microcourses/microcourses/internal/application/query"
	"github.com/microcourses/microcourses/internal/domain/idempotency"
	"github.com/microcourses/microcourses/internal/domain/user"
	"github.com/microcourses/microcourses/internal/infrastructure/persistence/redis"
	"github.com/microcourses/microcourses/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of request bodies.
	MaxBodyBytes int64

	// Version - reported by the meta endpoint.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
		MaxBodyBytes:   1 << 20, // 1 MB
		Version:        "0.1.0",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	RegisterUserHandler   *command.RegisterUserHandler
	CreateCourseHandler   *command.CreateCourseHandler
	EditCourseHandler     *command.EditCourseHandler
	SubmitCourseHandler   *command.SubmitCourseHandler
	ReviewCourseHandler   *command.ReviewCourseHandler
	CreateLessonHandler   *command.CreateLessonHandler
	EnrollHandler         *command.EnrollHandler
	CompleteLessonHandler *command.CompleteLessonHandler

	// Query Handlers (CQRS Read Side)
	ListCoursesHandler     *query.ListCoursesHandler
	GetCourseHandler       *query.GetCourseHandler
	ListLessonsHandler     *query.ListLessonsHandler
	GetProgressHandler     *query.GetProgressHandler
	ListEnrollmentsHandler *query.ListEnrollmentsHandler
	GetCertificateHandler  *query.GetCertificateHandler

	// UserRepo backs the login endpoint's credential check.
	UserRepo user.Repository

	// Tokens signs and verifies session tokens.
	Tokens *TokenCodec

	// Limiter enforces the per-user mutation budget. Nil disables limiting.
	Limiter redis.Limiter

	// Idempotency stores first-writer-wins response records. Nil disables
	// the idempotency guard.
	Idempotency idempotency.Store

	// PingDB and PingCache report dependency health. Nil checks are
	// reported as "disabled".
	PingDB    func(ctx context.Context) error
	PingCache func(ctx context.Context) error

	// Logger
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Meta Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	s.router.HandleFunc("GET /api/_meta", s.handleMeta)

	// ─────────────────────────────────────────────────────────────────────────
	// Authentication
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/auth/login", s.handleLogin)

	// ─────────────────────────────────────────────────────────────────────────
	// Courses
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/courses", s.authed(s.handleListCourses))
	s.router.HandleFunc("GET /api/courses/{id}", s.authed(s.handleGetCourse))
	s.router.HandleFunc("POST /api/courses", s.mutation(s.handleCreateCourse))
	s.router.HandleFunc("PATCH /api/courses/{id}", s.mutation(s.handleEditCourse))
	s.router.HandleFunc("POST /api/courses/{id}/submit", s.mutation(s.handleSubmitCourse))
	s.router.HandleFunc("POST /api/courses/{id}/review", s.mutation(s.handleReviewCourse))

	// ─────────────────────────────────────────────────────────────────────────
	// Lessons
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/courses/{id}/lessons", s.authed(s.handleListLessons))
	s.router.HandleFunc("POST /api/courses/{id}/lessons", s.mutation(s.handleCreateLesson))
	s.router.HandleFunc("POST /api/lessons/{id}/complete", s.mutation(s.handleCompleteLesson))

	// ─────────────────────────────────────────────────────────────────────────
	// Enrollment & Progress
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/courses/{id}/enroll", s.mutation(s.handleEnroll))
	s.router.HandleFunc("GET /api/enrollments", s.authed(s.handleListEnrollments))
	s.router.HandleFunc("GET /api/progress", s.authed(s.handleGetProgress))
	s.router.HandleFunc("GET /api/courses/{id}/progress", s.authed(s.handleGetCourseProgress))

	// ─────────────────────────────────────────────────────────────────────────
	// Certificates (public verification)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/certificates/{serial}", s.handleGetCertificate)
}

// authed is the middleware stack for authenticated read endpoints:
// authentication, then the shared per-user rate limit. The window counts
// reads and writes together.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(s.withRateLimit(h))
}

// mutation is the middleware stack for mutating endpoints: authentication,
// per-user rate limiting, then the idempotency guard.
func (s *Server) mutation(h http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(s.withRateLimit(s.withIdempotency(h)))
}

// buildMiddlewareChain wraps the router with the global middleware.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last middleware wraps first)
	h := handler
	h = s.bodyLimitMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	h = s.requestIDMiddleware(h)
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the listen address of the server.
func (s *Server) Address() string {
	return s.config.Address()
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
