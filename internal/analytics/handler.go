package analytics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// Handler serves the dashboard analytics endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMw}
}

// MountRoutes registers the analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapViewAnalytics))
		r.Get("/analytics/summary", h.summary)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("analytics summary", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, summary)
}
