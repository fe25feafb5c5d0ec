package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ataa-platform/ataa/internal/auth"
	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
	_ "github.com/ataa-platform/ataa/testing"
)

type stubRepo struct {
	users  map[string]*auth.User
	nextID int64
	admins map[int64]bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*auth.User), admins: make(map[int64]bool)}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) CreateUser(ctx context.Context, email, name, passwordHash string) (*auth.User, bool, error) {
	if _, exists := s.users[email]; exists {
		return nil, false, shared.ErrConflict
	}
	s.nextID++
	u := &auth.User{ID: s.nextID, Email: email, Name: name, PasswordHash: passwordHash, IsActive: true, CreatedAt: time.Now()}
	s.users[email] = u
	first := len(s.users) == 1
	if first {
		s.admins[u.ID] = true
	}
	return u, first, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubRoleRepo struct {
	roles map[int64]rbac.Role
}

func (s *stubRoleRepo) ListAssignments(ctx context.Context, userID int64) ([]rbac.Assignment, error) {
	role, ok := s.roles[userID]
	if !ok {
		return nil, nil
	}
	return []rbac.Assignment{{UserID: userID, Role: role}}, nil
}

func (s *stubRoleRepo) ReplaceAssignment(ctx context.Context, userID int64, role rbac.Role) error {
	s.roles[userID] = role
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository, roleRepo rbac.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), rbac.NewService(roleRepo, nil, logger), sessionManager)
	return handler, sessionManager
}

// commitRecorder commits the session before the first WriteHeader, the way
// the session middleware does. Committing after the handler ran is too late:
// the recorder has already snapshotted the response headers, so Set-Cookie
// would be lost.
type commitRecorder struct {
	*httptest.ResponseRecorder
	ctx       context.Context
	req       *http.Request
	sess      *shared.Session
	manager   *shared.SessionManager
	committed bool
	commitErr error
}

func (w *commitRecorder) WriteHeader(statusCode int) {
	if !w.committed {
		w.committed = true
		w.commitErr = w.manager.Commit(w.ctx, w.ResponseRecorder, w.req, w.sess)
	}
	w.ResponseRecorder.WriteHeader(statusCode)
}

func (w *commitRecorder) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseRecorder.Write(data)
}

// serve runs one request through the handler with a loaded session and the
// commit-on-write wrapper from the production middleware stack.
func serve(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := &commitRecorder{
		ResponseRecorder: httptest.NewRecorder(),
		ctx:              ctx,
		req:              req,
		sess:             sess,
		manager:          sessionManager,
	}
	router := chi.NewRouter()
	handler.MountRoutes(router)
	router.ServeHTTP(res, req)
	if !res.committed {
		res.commitErr = sessionManager.Commit(ctx, res.ResponseRecorder, req, sess)
	}
	require.NoError(t, res.commitErr)
	return res.ResponseRecorder
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	repo := newStubRepo()
	handler, sessions := newAuthHandler(t, repo, &stubRoleRepo{roles: map[int64]rbac.Role{}})

	body := `{"email":"founder@ataa.example","name":"Founder","password":"supersecret"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	res := serve(t, handler, sessions, req)

	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), `"role":"admin"`)
	require.True(t, repo.admins[1])

	// Second account stays a regular user.
	body = `{"email":"second@ataa.example","name":"Second","password":"supersecret"}`
	res = serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), `"role":"user"`)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubRepo()
	handler, sessions := newAuthHandler(t, repo, &stubRoleRepo{roles: map[int64]rbac.Role{}})

	body := `{"email":"dup@ataa.example","name":"One","password":"supersecret"}`
	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)

	res = serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	handler, sessions := newAuthHandler(t, newStubRepo(), &stubRoleRepo{roles: map[int64]rbac.Role{}})

	body := `{"email":"x@ataa.example","name":"X","password":"short"}`
	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.users["user@ataa.example"] = &auth.User{ID: 1, Email: "user@ataa.example", PasswordHash: string(hashed), IsActive: true}
	handler, sessions := newAuthHandler(t, repo, &stubRoleRepo{roles: map[int64]rbac.Role{}})

	body := `{"email":"user@ataa.example","password":"wrongpass1"}`
	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid email or password")
}

func TestLoginSetsSessionAndRole(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.users["mod@ataa.example"] = &auth.User{ID: 4, Email: "mod@ataa.example", Name: "Mod", PasswordHash: string(hashed), IsActive: true}
	handler, sessions := newAuthHandler(t, repo, &stubRoleRepo{roles: map[int64]rbac.Role{4: rbac.RoleModerator}})

	body := `{"email":"mod@ataa.example","password":"correctpass"}`
	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"role":"moderator"`)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, sessions.CookieName(), cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
}

func TestLoginInactiveAccountRejected(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.users["gone@ataa.example"] = &auth.User{ID: 2, Email: "gone@ataa.example", PasswordHash: string(hashed), IsActive: false}
	handler, sessions := newAuthHandler(t, repo, &stubRoleRepo{roles: map[int64]rbac.Role{}})

	body := `{"email":"gone@ataa.example","password":"correctpass"}`
	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeRequiresSession(t *testing.T) {
	handler, sessions := newAuthHandler(t, newStubRepo(), &stubRoleRepo{roles: map[int64]rbac.Role{}})

	res := serve(t, handler, sessions, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
