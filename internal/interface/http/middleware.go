package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/microcourses/microcourses/internal/domain/idempotency"
	"github.com/microcourses/microcourses/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS AND IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyIdentity  contextKey = "identity"
)

// Identity is the authenticated caller extracted from the session token.
type Identity struct {
	UserID string
	Role   string
}

// identityFrom extracts the authenticated identity from context.
func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERAL MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("request_id", getRequestID(r.Context())),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request body size.
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// withAuth verifies the bearer token and stores the caller's identity in the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
			return
		}

		claims, err := s.deps.Tokens.Verify(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		identity := Identity{UserID: claims.UserID, Role: claims.Role}
		ctx := context.WithValue(r.Context(), contextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// withRateLimit enforces the per-user sliding window on mutating endpoints.
// Requires withAuth earlier in the chain. Denied requests still consume a
// window slot.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := identityFrom(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
			return
		}

		decision, err := s.deps.Limiter.Allow(r.Context(), identity.UserID)
		if err != nil {
			// Limiter outage must not take down writes; log and let the
			// request through.
			s.logger.Error("rate limiter unavailable", logger.Err(err))
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IDEMPOTENCY
// ══════════════════════════════════════════════════════════════════════════════

// IdempotencyKeyHeader is the client-supplied deduplication key header.
const IdempotencyKeyHeader = "Idempotency-Key"

// replayedHeader marks responses served from a stored idempotency record.
const replayedHeader = "X-Idempotency-Replayed"

// withIdempotency deduplicates mutating requests carrying an Idempotency-Key
// header. The first execution's response is captured and stored; replays of
// the key return the stored response verbatim without re-executing the
// operation, regardless of the replay's request body.
func (s *Server) withIdempotency(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" || s.deps.Idempotency == nil {
			next.ServeHTTP(w, r)
			return
		}

		record, err := s.deps.Idempotency.Get(r.Context(), key)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if record != nil {
			s.replayRecord(w, record)
			return
		}

		// Read the body for hashing, then restore it for the handler.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "validation_error", "Failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		recorder := &responseRecorder{
			responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK},
		}
		next.ServeHTTP(recorder, r)

		// Server errors are not recorded so the client may retry the key.
		if recorder.statusCode >= http.StatusInternalServerError {
			return
		}

		rec := idempotency.NewRecord(key, recorder.statusCode, recorder.body.Bytes(), body)
		if err := s.deps.Idempotency.Put(r.Context(), rec); err != nil && err != idempotency.ErrKeyExists {
			s.logger.Error("failed to store idempotency record",
				logger.String("key", key),
				logger.Err(err),
			)
		}
	}
}

// replayRecord writes a stored response back to the client.
func (s *Server) replayRecord(w http.ResponseWriter, record *idempotency.Record) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(record.Response)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE WRITERS
// ══════════════════════════════════════════════════════════════════════════════

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// responseRecorder additionally captures the response body for idempotency
// storage.
type responseRecorder struct {
	responseWriter
	body bytes.Buffer
}

func (rr *responseRecorder) Write(p []byte) (int, error) {
	rr.body.Write(p)
	return rr.responseWriter.ResponseWriter.Write(p)
}
