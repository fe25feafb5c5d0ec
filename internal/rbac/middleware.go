package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ataa-platform/ataa/internal/shared"
)

type authContextKey struct{}

// ContextWithAuth stores the resolved auth session in context.
func ContextWithAuth(ctx context.Context, auth AuthSession) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the auth session placed by the middleware.
func AuthFromContext(ctx context.Context) (AuthSession, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthSession)
	return auth, ok
}

// Middleware wires role gating for HTTP handlers. The role is resolved
// against the datastore on every protected request, not read back from the
// session snapshot, so demotions take effect immediately.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAuth rejects unauthenticated requests and attaches the resolved
// AuthSession to the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := m.resolve(r)
		if !ok {
			shared.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), auth)))
	})
}

// Require gates the route behind a capability. Unauthenticated callers get
// 401, authenticated callers without the capability get 403.
func (m Middleware) Require(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := m.resolve(r)
			if !ok {
				shared.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !Allows(auth.Role, cap) {
				shared.RespondError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), auth)))
		})
	}
}

func (m Middleware) resolve(r *http.Request) (AuthSession, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return AuthSession{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return AuthSession{}, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return AuthSession{}, false
	}
	role, err := m.Service.ResolveRole(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac resolve role", slog.Any("error", err))
		}
		return AuthSession{}, false
	}
	return AuthSession{UserID: userID, Role: role}, true
}
