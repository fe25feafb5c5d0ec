package users

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

// Handler wires the admin user directory endpoints.
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

// MountRoutes registers the directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapViewDashboard))
		r.Get("/users", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManageRoles))
		r.Put("/users/{userID}/role", h.setRole)
	})
}

type listResponse struct {
	Users      []Record          `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	records, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if records == nil {
		records = []Record{}
	}
	shared.RespondJSON(w, http.StatusOK, listResponse{
		Users:      records,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req setRoleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "role is required")
		return
	}
	if _, err := rbac.ParseRole(req.Role); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	actor, _ := rbac.AuthFromContext(r.Context())
	if err := h.service.SetRole(r.Context(), actor, targetID, req.Role); err != nil {
		switch {
		case errors.Is(err, rbac.ErrForbidden):
			shared.RespondError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		case errors.Is(err, shared.ErrNotFound):
			shared.RespondError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("set role", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}
