package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ataa-platform/ataa/internal/analytics"
	"github.com/ataa-platform/ataa/internal/app"
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

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "ataa_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), auditLogger, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, rbacService, sessionManager)

	projectRepo := project.NewRepository(dbpool)
	projectService := project.NewService(projectRepo, auditLogger, logger)
	projectHandler := project.NewHandler(logger, projectService, rbacMiddleware)

	orchestrator := donation.NewOrchestrator(cfg.PaymentFunctionURL, &http.Client{Timeout: cfg.PaymentTimeout}, logger)
	donationRepo := donation.NewRepository(dbpool)
	donationService := donation.NewService(donationRepo, orchestrator)
	donationHandler := donation.NewHandler(logger, donationService, rbacMiddleware)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), rbacService), rbacMiddleware)

	settingsService := settings.NewService(settings.NewRepository(dbpool), auditLogger, logger)
	settingsHandler := settings.NewHandler(logger, settingsService, rbacMiddleware)

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	analyticsService := analytics.NewService(analytics.NewRepository(dbpool), analyticsCache)
	analyticsHandler := analytics.NewHandler(logger, analyticsService, rbacMiddleware)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	processor := payment.NewStripeProcessor(func() string { return cfg.StripeSecretKey })
	settlement := payment.NewSettlement(logger, donationService, idempotencyStore, projectService, analyticsService, jobClient)
	paymentHandler := payment.NewHandler(logger, processor, donationService)
	webhookHandler := payment.NewWebhookHandler(logger, func() string { return cfg.StripeWebhookSecret }, settlement)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      authHandler,
		DonationHandler:  donationHandler,
		ProjectHandler:   projectHandler,
		UsersHandler:     usersHandler,
		SettingsHandler:  settingsHandler,
		AnalyticsHandler: analyticsHandler,
		PaymentHandler:   paymentHandler,
		WebhookHandler:   webhookHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
