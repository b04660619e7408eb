package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/microcourses/microcourses/internal/application/command"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// memUserRepo is an in-memory user.Repository for endpoint tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func newAuthTestServer(t *testing.T) (*Server, *memUserRepo) {
	t.Helper()
	users := newMemUserRepo()
	return newTestServer(Dependencies{
		RegisterUserHandler: command.NewRegisterUserHandler(users, nil),
		UserRepo:            users,
	}), users
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleRegister(t *testing.T) {
	s, users := newAuthTestServer(t)

	rec := postJSON(t, s, "/api/auth/register",
		`{"email":"alice@example.com","password":"password123","display_name":"Alice","role":"creator"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			User  userDTO `json:"user"`
			Token string  `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "alice@example.com", resp.Data.User.Email)
	assert.Equal(t, "creator", resp.Data.User.Role)
	require.NotEmpty(t, resp.Data.Token)

	// The issued token carries the account's identity.
	claims, err := s.deps.Tokens.Verify(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Data.User.ID, claims.UserID)
	assert.Equal(t, "creator", claims.Role)

	stored, err := users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	s, _ := newAuthTestServer(t)

	body := `{"email":"alice@example.com","password":"password123","display_name":"Alice","role":"learner"}`
	require.Equal(t, http.StatusCreated, postJSON(t, s, "/api/auth/register", body).Code)

	rec := postJSON(t, s, "/api/auth/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "already_exists", resp.Error.Code)
}

func TestHandleRegister_InvalidBody(t *testing.T) {
	s, _ := newAuthTestServer(t)

	rec := postJSON(t, s, "/api/auth/register", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/auth/register", `{"email":"a@b.c","password":"password123","display_name":"A","unknown_field":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	s, users := newAuthTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &user.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		DisplayName:  "Alice",
		Role:         user.RoleLearner,
	}))

	rec := postJSON(t, s, "/api/auth/login", `{"email":"alice@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	claims, err := s.deps.Tokens.Verify(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	s, users := newAuthTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &user.User{
		ID: "user-1", Email: "alice@example.com", PasswordHash: string(hash),
		DisplayName: "Alice", Role: user.RoleLearner,
	}))

	// Wrong password and unknown email are indistinguishable.
	wrongPass := postJSON(t, s, "/api/auth/login", `{"email":"alice@example.com","password":"nope"}`)
	unknown := postJSON(t, s, "/api/auth/login", `{"email":"ghost@example.com","password":"password123"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)

	var a, b JSONResponse
	require.NoError(t, json.Unmarshal(wrongPass.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(unknown.Body.Bytes(), &b))
	assert.Equal(t, a.Error.Message, b.Error.Message)
}

func TestHandleMeta(t *testing.T) {
	s := newTestServer(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/_meta", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "microcourses", resp.Data.Name)
	assert.NotEmpty(t, resp.Data.Version)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(Dependencies{})

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/courses"},
		{http.MethodPost, "/api/courses"},
		{http.MethodGet, "/api/enrollments"},
		{http.MethodGet, "/api/progress"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}
