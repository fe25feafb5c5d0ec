package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	roles          *rbac.Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles *rbac.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		roles:          roles,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type accountBody struct {
	User userResponse `json:"user"`
}

func accountResponse(user *User, role rbac.Role) accountBody {
	return accountBody{User: userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  role.String(),
	}}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "email, name, and a password of at least 8 characters are required")
		return
	}

	user, role, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			shared.RespondError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.logger.Error("register account", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	h.establishSession(r, user, role)
	shared.RespondJSON(w, http.StatusCreated, accountResponse(user, role))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.RespondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	role, err := h.roles.ResolveRole(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resolve role at login", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "could not complete login")
		return
	}

	h.establishSession(r, user, role)
	shared.RespondJSON(w, http.StatusOK, accountResponse(user, role))
}

// establishSession binds the authenticated user to the cookie session and
// records the login server side. The middleware commits the session.
func (h *Handler) establishSession(r *http.Request, user *User, role rbac.Role) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.SetRole(role.String())
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	shared.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
		return
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
			return
		}
		h.logger.Error("load account", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "could not load account")
		return
	}

	role, err := h.roles.ResolveRole(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resolve role", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "could not load account")
		return
	}
	shared.RespondJSON(w, http.StatusOK, accountResponse(user, role))
}
