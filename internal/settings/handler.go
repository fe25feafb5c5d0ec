package settings

import (
	"context"
	"log/slog"
	"strconv"

	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// Service wraps document access with auditing on writes.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Load returns the current document.
func (s *Service) Load(ctx context.Context) (Document, error) {
	return s.repo.Load(ctx)
}

// Save replaces the document and audits the change.
func (s *Service) Save(ctx context.Context, actor rbac.AuthSession, doc Document) error {
	if err := s.repo.Save(ctx, doc); err != nil {
		return err
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "settings.save",
			Entity:   "settings",
			EntityID: documentKey,
			Meta:     map[string]any{"maintenance_mode": strconv.FormatBool(doc.MaintenanceMode)},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("audit settings save", slog.Any("error", err))
		}
	}
	return nil
}

// Handler wires public and admin settings endpoints.
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

// MountPublic registers the unauthenticated read route.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/settings", h.publicGet)
}

// MountAdmin registers the admin routes.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManageSettings))
		r.Get("/settings", h.adminGet)
		r.Put("/settings", h.put)
	})
}

func (h *Handler) publicGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, doc.Public())
}

func (h *Handler) adminGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, doc)
}

type putRequest struct {
	SiteName        string `json:"site_name" validate:"required,max=120"`
	ContactEmail    string `json:"contact_email" validate:"omitempty,email"`
	DefaultCurrency string `json:"default_currency" validate:"required,len=3"`
	AllowAnonymous  bool   `json:"allow_anonymous"`
	MaintenanceMode bool   `json:"maintenance_mode"`
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	actor, _ := rbac.AuthFromContext(r.Context())
	doc := Document{
		SiteName:        req.SiteName,
		ContactEmail:    req.ContactEmail,
		DefaultCurrency: req.DefaultCurrency,
		AllowAnonymous:  req.AllowAnonymous,
		MaintenanceMode: req.MaintenanceMode,
	}
	if err := h.service.Save(r.Context(), actor, doc); err != nil {
		h.logger.Error("save settings", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.RespondJSON(w, http.StatusOK, doc)
}
