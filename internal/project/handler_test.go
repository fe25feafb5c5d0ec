package project_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/ataa/internal/project"
	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
	_ "github.com/ataa-platform/ataa/testing"
)

type memoryProjectRepo struct {
	rows   map[int64]project.Project
	nextID int64
}

func newMemoryProjectRepo() *memoryProjectRepo {
	return &memoryProjectRepo{rows: make(map[int64]project.Project)}
}

func (r *memoryProjectRepo) Insert(ctx context.Context, p project.Project) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.rows[p.ID] = p
	return p.ID, nil
}

func (r *memoryProjectRepo) Update(ctx context.Context, p project.Project) error {
	existing, ok := r.rows[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	p.RaisedMinor = existing.RaisedMinor
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	r.rows[p.ID] = p
	return nil
}

func (r *memoryProjectRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryProjectRepo) GetByID(ctx context.Context, id int64) (project.Project, error) {
	p, ok := r.rows[id]
	if !ok {
		return project.Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryProjectRepo) List(ctx context.Context, filters project.ListFilters) ([]project.Project, int, error) {
	var out []project.Project
	for _, p := range r.rows {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.Category != "" && p.Category != filters.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryProjectRepo) CreditRaised(ctx context.Context, id, amountMinor int64) error {
	p, ok := r.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.RaisedMinor += amountMinor
	r.rows[id] = p
	return nil
}

type fixedRoleRepo struct {
	roles map[int64]rbac.Role
}

func (s *fixedRoleRepo) ListAssignments(ctx context.Context, userID int64) ([]rbac.Assignment, error) {
	role, ok := s.roles[userID]
	if !ok {
		return nil, nil
	}
	return []rbac.Assignment{{UserID: userID, Role: role}}, nil
}

func (s *fixedRoleRepo) ReplaceAssignment(ctx context.Context, userID int64, role rbac.Role) error {
	s.roles[userID] = role
	return nil
}

func newProjectRouters(repo project.RepositoryPort, roles map[int64]rbac.Role) (public, admin chi.Router) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rbacMw := rbac.Middleware{Service: rbac.NewService(&fixedRoleRepo{roles: roles}, nil, logger), Logger: logger}
	handler := project.NewHandler(logger, project.NewService(repo, nil, logger), rbacMw)

	public = chi.NewRouter()
	handler.MountPublic(public)
	admin = chi.NewRouter()
	handler.MountAdmin(admin)
	return public, admin
}

// asUser attaches a logged-in session for the given user id.
func asUser(req *http.Request, userID string) *http.Request {
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func seedProjects(t *testing.T, repo *memoryProjectRepo) {
	t.Helper()
	seeds := []project.Project{
		{Title: "Water well", Category: "water", GoalMinor: 500000, Status: project.StatusActive},
		{Title: "School kits", Category: "education", GoalMinor: 200000, Status: project.StatusActive},
		{Title: "Old campaign", Category: "water", GoalMinor: 100000, Status: project.StatusInactive},
	}
	for _, p := range seeds {
		_, err := repo.Insert(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestPublicListDefaultsToActive(t *testing.T) {
	repo := newMemoryProjectRepo()
	seedProjects(t, repo)
	public, _ := newProjectRouters(repo, nil)

	res := httptest.NewRecorder()
	public.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/projects", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	require.Contains(t, body, "Water well")
	require.Contains(t, body, "School kits")
	require.NotContains(t, body, "Old campaign")
	require.Contains(t, body, `"total":2`)
}

func TestPublicListCategoryFilter(t *testing.T) {
	repo := newMemoryProjectRepo()
	seedProjects(t, repo)
	public, _ := newProjectRouters(repo, nil)

	res := httptest.NewRecorder()
	public.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/projects?category=education", nil))

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "School kits")
	require.NotContains(t, res.Body.String(), "Water well")
}

func TestPublicListRejectsUnknownStatus(t *testing.T) {
	public, _ := newProjectRouters(newMemoryProjectRepo(), nil)

	res := httptest.NewRecorder()
	public.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/projects?status=archived", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPublicGetNotFound(t *testing.T) {
	public, _ := newProjectRouters(newMemoryProjectRepo(), nil)

	res := httptest.NewRecorder()
	public.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/projects/99", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestAdminCreateRequiresAuth(t *testing.T) {
	_, admin := newProjectRouters(newMemoryProjectRepo(), map[int64]rbac.Role{})

	body := `{"title":"New","goal_amount":1000,"status":"active"}`
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminCreateForbiddenForRegularUser(t *testing.T) {
	_, admin := newProjectRouters(newMemoryProjectRepo(), map[int64]rbac.Role{7: rbac.RoleUser})

	body := `{"title":"New","goal_amount":1000,"status":"active"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)), "7")
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestAdminCreateAllowedForModerator(t *testing.T) {
	repo := newMemoryProjectRepo()
	_, admin := newProjectRouters(repo, map[int64]rbac.Role{3: rbac.RoleModerator})

	body := `{"title":"Winter clothing","description":"Coats","category":"relief","goal_amount":750000,"status":"active"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)), "3")
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, req)

	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), "Winter clothing")
	require.Len(t, repo.rows, 1)
}

func TestAdminCreateValidatesPayload(t *testing.T) {
	_, admin := newProjectRouters(newMemoryProjectRepo(), map[int64]rbac.Role{1: rbac.RoleAdmin})

	for _, body := range []string{
		`{"title":"","goal_amount":1000,"status":"active"}`,
		`{"title":"X","goal_amount":0,"status":"active"}`,
		`{"title":"X","goal_amount":1000,"status":"archived"}`,
	} {
		req := asUser(httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)), "1")
		res := httptest.NewRecorder()
		admin.ServeHTTP(res, req)
		require.Equal(t, http.StatusBadRequest, res.Code, "body=%s", body)
	}
}

func TestAdminUpdateAndDelete(t *testing.T) {
	repo := newMemoryProjectRepo()
	seedProjects(t, repo)
	_, admin := newProjectRouters(repo, map[int64]rbac.Role{1: rbac.RoleAdmin})

	body := `{"title":"Water well phase 2","category":"water","goal_amount":900000,"status":"active"}`
	req := asUser(httptest.NewRequest(http.MethodPut, "/projects/1", strings.NewReader(body)), "1")
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "phase 2")

	req = asUser(httptest.NewRequest(http.MethodDelete, "/projects/2", nil), "1")
	res = httptest.NewRecorder()
	admin.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	_, err := repo.GetByID(context.Background(), 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreditRaisedAccumulates(t *testing.T) {
	repo := newMemoryProjectRepo()
	seedProjects(t, repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := project.NewService(repo, nil, logger)

	require.NoError(t, service.CreditRaised(context.Background(), 1, 2500))
	require.NoError(t, service.CreditRaised(context.Background(), 1, 1500))

	p, err := service.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(4000), p.RaisedMinor)

	require.ErrorIs(t, service.CreditRaised(context.Background(), 99, 100), shared.ErrNotFound)
}
