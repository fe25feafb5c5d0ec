package users_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
	"github.com/ataa-platform/ataa/internal/users"
	_ "github.com/ataa-platform/ataa/testing"
)

type memoryDirectory struct {
	records []users.Record
}

func (d *memoryDirectory) List(ctx context.Context, page, perPage int) ([]users.Record, int, error) {
	return d.records, len(d.records), nil
}

type memoryRoleRepo struct {
	roles map[int64]rbac.Role
}

func (s *memoryRoleRepo) ListAssignments(ctx context.Context, userID int64) ([]rbac.Assignment, error) {
	role, ok := s.roles[userID]
	if !ok {
		return nil, nil
	}
	return []rbac.Assignment{{UserID: userID, Role: role, CreatedAt: time.Now()}}, nil
}

func (s *memoryRoleRepo) ReplaceAssignment(ctx context.Context, userID int64, role rbac.Role) error {
	s.roles[userID] = role
	return nil
}

func newUsersRouter(directory users.Repository, roleRepo *memoryRoleRepo) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roleService := rbac.NewService(roleRepo, nil, logger)
	rbacMw := rbac.Middleware{Service: roleService, Logger: logger}
	handler := users.NewHandler(logger, users.NewService(directory, roleService), rbacMw)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestListUsersVisibleToModerator(t *testing.T) {
	directory := &memoryDirectory{records: []users.Record{
		{ID: 1, Email: "admin@ataa.example", Name: "Admin", IsActive: true, Role: "admin"},
		{ID: 2, Email: "user@ataa.example", Name: "User", IsActive: true, Role: "user"},
	}}
	router := newUsersRouter(directory, &memoryRoleRepo{roles: map[int64]rbac.Role{5: rbac.RoleModerator}})

	req := asUser(httptest.NewRequest(http.MethodGet, "/users", nil), "5")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "admin@ataa.example")
	require.Contains(t, res.Body.String(), `"total":2`)
}

func TestListUsersRequiresAuth(t *testing.T) {
	router := newUsersRouter(&memoryDirectory{}, &memoryRoleRepo{roles: map[int64]rbac.Role{}})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/users", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSetRoleForbiddenForModerator(t *testing.T) {
	roleRepo := &memoryRoleRepo{roles: map[int64]rbac.Role{5: rbac.RoleModerator, 2: rbac.RoleUser}}
	router := newUsersRouter(&memoryDirectory{}, roleRepo)

	req := asUser(httptest.NewRequest(http.MethodPut, "/users/2/role", strings.NewReader(`{"role":"moderator"}`)), "5")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, rbac.RoleUser, roleRepo.roles[2], "role must not change")
}

func TestSetRoleByAdmin(t *testing.T) {
	roleRepo := &memoryRoleRepo{roles: map[int64]rbac.Role{1: rbac.RoleAdmin, 2: rbac.RoleUser}}
	router := newUsersRouter(&memoryDirectory{}, roleRepo)

	req := asUser(httptest.NewRequest(http.MethodPut, "/users/2/role", strings.NewReader(`{"role":"moderator"}`)), "1")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, rbac.RoleModerator, roleRepo.roles[2])
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	roleRepo := &memoryRoleRepo{roles: map[int64]rbac.Role{1: rbac.RoleAdmin, 2: rbac.RoleUser}}
	router := newUsersRouter(&memoryDirectory{}, roleRepo)

	req := asUser(httptest.NewRequest(http.MethodPut, "/users/2/role", strings.NewReader(`{"role":"superuser"}`)), "1")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, rbac.RoleUser, roleRepo.roles[2])
}

func TestSetRoleInvalidTargetID(t *testing.T) {
	router := newUsersRouter(&memoryDirectory{}, &memoryRoleRepo{roles: map[int64]rbac.Role{1: rbac.RoleAdmin}})

	req := asUser(httptest.NewRequest(http.MethodPut, "/users/abc/role", strings.NewReader(`{"role":"user"}`)), "1")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}
