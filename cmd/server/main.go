// Package main is the entry point for the MicroCourses API server.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: pure business logic without external dependencies
// - Application: use case orchestration (Commands/Queries/EventHandlers)
// - Infrastructure: repository implementations, cache, event bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	// Application layer
	"github.com/microcourses/microcourses/internal/application/command"
	"github.com/microcourses/microcourses/internal/application/eventhandler"
	"github.com/microcourses/microcourses/internal/application/query"

	// Domain layer
	"github.com/microcourses/microcourses/internal/domain/course"
	"github.com/microcourses/microcourses/internal/domain/shared"

	// Infrastructure layer
	"github.com/microcourses/microcourses/internal/infrastructure/messaging"
	"github.com/microcourses/microcourses/internal/infrastructure/persistence/postgres"
	"github.com/microcourses/microcourses/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/microcourses/microcourses/internal/interface/http"

	// Packages
	"github.com/microcourses/microcourses/config"
	"github.com/microcourses/microcourses/pkg/logger"
	"github.com/microcourses/microcourses/pkg/retry"
)

// devTokenSecret is only used in development when AUTH_TOKEN_SECRET is
// unset. Load() rejects an empty secret in production.
const devTokenSecret = "microcourses-dev-secret-do-not-use-in-prod"

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting MicroCourses API",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE CONNECTION
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")

	var dbConn *postgres.Connection
	err = retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		// The database may still be coming up; keep trying.
		return retry.Retryable(connErr)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.RunMigrations {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	if cfg.App.SeedDemoData {
		log.Info("seeding demo accounts...")
		if err := seedDemoUsers(ctx, dbConn, cfg.Auth.BcryptCost); err != nil {
			log.Warn("demo seeding failed", "error", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-process rate limiting", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			log.Info("Redis connection established")
		}
	}

	limiterCfg := redis.LimiterConfig{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}
	var limiter redis.Limiter
	if cfg.RateLimit.Enabled {
		if cache != nil {
			limiter = redis.NewSlidingWindowLimiter(cache, limiterCfg)
		} else {
			limiter = redis.NewMemoryLimiter(limiterCfg)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	userRepo := postgres.NewUserRepository(dbConn)
	courseRepo := postgres.NewCourseRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)
	enrollmentRepo := postgres.NewEnrollmentRepository(dbConn)
	idempotencyStore := postgres.NewIdempotencyStore(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	var invalidator eventhandler.CacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	reviewedHandler := eventhandler.NewOnCourseReviewedHandler(invalidator, redis.PrefixCatalog, log)
	if err := eventBus.Subscribe(shared.EventCourseReviewed, reviewedHandler); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	certificateHandler := eventhandler.NewOnCertificateIssuedHandler(userRepo, log)
	if err := eventBus.Subscribe(shared.EventCertificateIssued, certificateHandler); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	registerUserCmd := command.NewRegisterUserHandler(userRepo, eventBus)
	createCourseCmd := command.NewCreateCourseHandler(courseRepo, userRepo, eventBus)
	editCourseCmd := command.NewEditCourseHandler(courseRepo, eventBus)
	submitCourseCmd := command.NewSubmitCourseHandler(courseRepo, eventBus)
	reviewCourseCmd := command.NewReviewCourseHandler(courseRepo, userRepo, eventBus)
	createLessonCmd := command.NewCreateLessonHandler(courseRepo, lessonRepo, eventBus)
	enrollCmd := command.NewEnrollHandler(courseRepo, enrollmentRepo, userRepo, eventBus)
	completeLessonCmd := command.NewCompleteLessonHandler(lessonRepo, enrollmentRepo, eventBus)

	var catalogCache course.CatalogCache
	if cache != nil {
		catalogCache = redis.NewCatalogCache(cache)
	}
	listCoursesQuery := query.NewListCoursesHandler(courseRepo, catalogCache)
	getCourseQuery := query.NewGetCourseHandler(courseRepo)
	listLessonsQuery := query.NewListLessonsHandler(courseRepo, lessonRepo, enrollmentRepo)
	getProgressQuery := query.NewGetProgressHandler(enrollmentRepo)
	listEnrollmentsQuery := query.NewListEnrollmentsHandler(enrollmentRepo)
	getCertificateQuery := query.NewGetCertificateHandler(enrollmentRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	tokenSecret := cfg.Auth.TokenSecret
	if tokenSecret == "" {
		log.Warn("AUTH_TOKEN_SECRET not set, using development secret")
		tokenSecret = devTokenSecret
	}
	tokens := httpserver.NewTokenCodec(tokenSecret, cfg.Auth.TokenTTL)

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.Version = cfg.App.Version

	httpDeps := httpserver.Dependencies{
		RegisterUserHandler:   registerUserCmd,
		CreateCourseHandler:   createCourseCmd,
		EditCourseHandler:     editCourseCmd,
		SubmitCourseHandler:   submitCourseCmd,
		ReviewCourseHandler:   reviewCourseCmd,
		CreateLessonHandler:   createLessonCmd,
		EnrollHandler:         enrollCmd,
		CompleteLessonHandler: completeLessonCmd,

		ListCoursesHandler:     listCoursesQuery,
		GetCourseHandler:       getCourseQuery,
		ListLessonsHandler:     listLessonsQuery,
		GetProgressHandler:     getProgressQuery,
		ListEnrollmentsHandler: listEnrollmentsQuery,
		GetCertificateHandler:  getCertificateQuery,

		UserRepo:    userRepo,
		Tokens:      tokens,
		Limiter:     limiter,
		Idempotency: idempotencyStore,
		PingDB:      dbConn.Ping,
		Logger:      logger.Default(),
	}
	if cache != nil {
		httpDeps.PingCache = cache.Ping
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. START
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("MicroCourses API is running", "http_address", httpServer.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// seedDemoUsers inserts one account per role so a fresh development
// database is immediately usable.
func seedDemoUsers(ctx context.Context, conn *postgres.Connection, bcryptCost int) error {
	demo := []struct {
		id, email, password, name, role string
	}{
		{"00000000-0000-0000-0000-000000000001", "learner@example.com", "learner123", "Demo Learner", "learner"},
		{"00000000-0000-0000-0000-000000000002", "creator@example.com", "creator123", "Demo Creator", "creator"},
		{"00000000-0000-0000-0000-000000000003", "admin@example.com", "admin123", "Demo Admin", "admin"},
	}

	users := make([]postgres.SeedUser, 0, len(demo))
	for _, d := range demo {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcryptCost)
		if err != nil {
			return err
		}
		users = append(users, postgres.SeedUser{
			ID:           d.id,
			Email:        d.email,
			PasswordHash: string(hash),
			DisplayName:  d.name,
			Role:         d.role,
		})
	}

	return postgres.SeedDemoData(ctx, conn, users)
}
