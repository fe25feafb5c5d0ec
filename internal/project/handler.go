package project

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// Handler wires public browsing and admin project management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMw, validator: validator.New()}
}

// MountPublic registers the browsing routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/projects", h.list)
	r.Get("/projects/{projectID}", h.get)
}

// MountAdmin registers the management routes.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManageProjects))
		r.Get("/projects", h.adminList)
		r.Post("/projects", h.create)
		r.Put("/projects/{projectID}", h.update)
		r.Delete("/projects/{projectID}", h.delete)
	})
}

type listResponse struct {
	Projects   []Project         `json:"projects"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, StatusActive)
}

// adminList shows every status unless the query narrows it.
func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "")
}

func (h *Handler) serveList(w http.ResponseWriter, r *http.Request, defaultStatus Status) {
	page, perPage := shared.PageParams(r)
	filters := ListFilters{
		Status:   defaultStatus,
		Category: r.URL.Query().Get("category"),
		Page:     page,
		PerPage:  perPage,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		filters.Status = status
	}

	projects, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	shared.RespondJSON(w, http.StatusOK, listResponse{
		Projects:   projects,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("get project", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, p)
}

type projectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"max=80"`
	GoalAmount  int64  `json:"goal_amount" validate:"required,gt=0"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Status      string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.AuthFromContext(r.Context())
	p, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.AuthFromContext(r.Context())
	p, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.AuthFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondMutationError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req projectRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return Input{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return Input{}, false
	}
	return Input{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		GoalMinor:   req.GoalAmount,
		ImageURL:    req.ImageURL,
		Status:      Status(req.Status),
	}, true
}

func (h *Handler) respondMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		shared.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		shared.RespondError(w, http.StatusNotFound, "project not found")
	default:
		h.logger.Error("project mutation", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid project id")
		return 0, false
	}
	return id, true
}
