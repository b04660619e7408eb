package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcourses/microcourses/internal/application/query"
	"github.com/microcourses/microcourses/internal/domain/enrollment"
	"github.com/microcourses/microcourses/internal/domain/idempotency"
	"github.com/microcourses/microcourses/internal/infrastructure/persistence/redis"
	"github.com/microcourses/microcourses/pkg/logger"
)

// memIdempotencyStore is an in-memory idempotency.Store for middleware tests.
type memIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{records: make(map[string]*idempotency.Record)}
}

func (s *memIdempotencyStore) Get(_ context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memIdempotencyStore) Put(_ context.Context, r *idempotency.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Key]; ok {
		return idempotency.ErrKeyExists
	}
	cp := *r
	s.records[r.Key] = &cp
	return nil
}

func newTestServer(deps Dependencies) *Server {
	if deps.Tokens == nil {
		deps.Tokens = NewTokenCodec("test-secret", time.Hour)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	return NewServer(DefaultConfig(), deps)
}

func bearer(t *testing.T, s *Server, userID, role string) string {
	t.Helper()
	token, err := s.deps.Tokens.Sign(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

// ──────────────────────────────────────────────────────────────────────────────
// auth
// ──────────────────────────────────────────────────────────────────────────────

func TestWithAuth(t *testing.T) {
	s := newTestServer(Dependencies{})

	var seen Identity
	handler := s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, s, "user-1", "creator"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Identity{UserID: "user-1", Role: "creator"}, seen)
}

func TestWithAuth_Rejections(t *testing.T) {
	s := newTestServer(Dependencies{})
	handler := s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var resp JSONResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "unauthorized", resp.Error.Code)
		})
	}
}

func TestWithAuth_ExpiredToken(t *testing.T) {
	codec := NewTokenCodec("test-secret", -time.Minute)
	s := newTestServer(Dependencies{Tokens: codec})
	handler := s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", bearer(t, s, "user-1", "learner"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// rate limiting
// ──────────────────────────────────────────────────────────────────────────────

func TestWithRateLimit(t *testing.T) {
	limiter := redis.NewMemoryLimiter(redis.LimiterConfig{MaxRequests: 2, Window: time.Minute})
	s := newTestServer(Dependencies{Limiter: limiter})

	calls := 0
	handler := s.withAuth(s.withRateLimit(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	auth := bearer(t, s, "user-1", "learner")
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)
}

func TestWithRateLimit_PerUser(t *testing.T) {
	limiter := redis.NewMemoryLimiter(redis.LimiterConfig{MaxRequests: 1, Window: time.Minute})
	s := newTestServer(Dependencies{Limiter: limiter})

	handler := s.withAuth(s.withRateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	alice := bearer(t, s, "alice", "learner")
	bob := bearer(t, s, "bob", "learner")

	assert.Equal(t, http.StatusOK, do(alice))
	assert.Equal(t, http.StatusTooManyRequests, do(alice))

	// Budgets are per user; alice exhausting hers does not touch bob's.
	assert.Equal(t, http.StatusOK, do(bob))
}

// stubEnrollmentLister answers ListEnrollments with an empty page; any other
// repository call panics through the embedded nil interface.
type stubEnrollmentLister struct {
	enrollment.Repository
}

func (stubEnrollmentLister) ListEnrollments(context.Context, string, int, int) ([]*enrollment.Enrollment, error) {
	return nil, nil
}

func TestWithRateLimit_ReadRoutes(t *testing.T) {
	limiter := redis.NewMemoryLimiter(redis.LimiterConfig{MaxRequests: 1, Window: time.Minute})
	s := newTestServer(Dependencies{
		Limiter:                limiter,
		ListEnrollmentsHandler: query.NewListEnrollmentsHandler(stubEnrollmentLister{}),
	})

	auth := bearer(t, s, "user-1", "learner")
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)

	// Reads draw from the same per-user window as writes.
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestWithRateLimit_DisabledWhenNil(t *testing.T) {
	s := newTestServer(Dependencies{})
	handler := s.withAuth(s.withRateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	auth := bearer(t, s, "user-1", "learner")
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// idempotency
// ──────────────────────────────────────────────────────────────────────────────

func TestWithIdempotency_Replay(t *testing.T) {
	store := newMemIdempotencyStore()
	s := newTestServer(Dependencies{Idempotency: store})

	calls := 0
	handler := s.withIdempotency(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusCreated, map[string]string{"id": "course-1"})
	})

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	first := do(`{"title":"Go"}`)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	// The replay returns the stored response verbatim without running the
	// handler, even though the body differs.
	second := do(`{"title":"Rust"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestWithIdempotency_DistinctKeys(t *testing.T) {
	store := newMemIdempotencyStore()
	s := newTestServer(Dependencies{Idempotency: store})

	calls := 0
	handler := s.withIdempotency(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, calls)
	})

	for _, key := range []string{"key-a", "key-b"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, key)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestWithIdempotency_NoKeyPassesThrough(t *testing.T) {
	store := newMemIdempotencyStore()
	s := newTestServer(Dependencies{Idempotency: store})

	calls := 0
	handler := s.withIdempotency(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler(rec, req)
	}

	assert.Equal(t, 3, calls)
	assert.Empty(t, store.records)
}

func TestWithIdempotency_ServerErrorsNotStored(t *testing.T) {
	store := newMemIdempotencyStore()
	s := newTestServer(Dependencies{Idempotency: store})

	calls := 0
	handler := s.withIdempotency(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "boom")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": "course-1"})
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusInternalServerError, do().Code)

	// The failed attempt left no record, so the retry executes for real.
	retry := do()
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get(replayedHeader))
	assert.Equal(t, 2, calls)
}

// ──────────────────────────────────────────────────────────────────────────────
// server
// ──────────────────────────────────────────────────────────────────────────────

func TestServer_Address(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9191

	s := NewServer(cfg, Dependencies{Tokens: NewTokenCodec("test-secret", time.Hour)})

	assert.Equal(t, "127.0.0.1:9191", s.Address())
}

// ──────────────────────────────────────────────────────────────────────────────
// health
// ──────────────────────────────────────────────────────────────────────────────

func TestHandleHealth(t *testing.T) {
	s := newTestServer(Dependencies{
		PingDB: func(ctx context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandleHealth_UnhealthyDB(t *testing.T) {
	s := newTestServer(Dependencies{
		PingDB: func(ctx context.Context) error { return context.DeadlineExceeded },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
