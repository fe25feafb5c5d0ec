package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ataa-platform/ataa/internal/analytics"
	"github.com/ataa-platform/ataa/internal/auth"
	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/observability"
	"github.com/ataa-platform/ataa/internal/payment"
	"github.com/ataa-platform/ataa/internal/project"
	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/settings"
	"github.com/ataa-platform/ataa/internal/shared"
	"github.com/ataa-platform/ataa/internal/users"
	"github.com/ataa-platform/ataa/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	RBACMiddleware rbac.Middleware

	AuthHandler      *auth.Handler
	DonationHandler  *donation.Handler
	ProjectHandler   *project.Handler
	UsersHandler     *users.Handler
	SettingsHandler  *settings.Handler
	AnalyticsHandler *analytics.Handler
	PaymentHandler   *payment.Handler
	WebhookHandler   *payment.WebhookHandler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.ProjectHandler != nil {
			params.ProjectHandler.MountPublic(r)
		}
		if params.DonationHandler != nil {
			params.DonationHandler.MountPublic(r)
		}
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountPublic(r)
		}
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Route("/admin", func(r chi.Router) {
			if params.DonationHandler != nil {
				params.DonationHandler.MountAdmin(r)
			}
			if params.ProjectHandler != nil {
				params.ProjectHandler.MountAdmin(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.SettingsHandler != nil {
				params.SettingsHandler.MountAdmin(r)
			}
			if params.AnalyticsHandler != nil {
				params.AnalyticsHandler.MountRoutes(r)
			}
		})
	})

	// The payment function endpoints mirror the hosted function surface the
	// public site calls directly.
	r.Route("/functions", func(r chi.Router) {
		if params.PaymentHandler != nil {
			params.PaymentHandler.MountRoutes(r)
		}
		if params.WebhookHandler != nil {
			params.WebhookHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
