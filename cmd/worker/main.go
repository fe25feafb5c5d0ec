package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ataa-platform/ataa/internal/analytics"
	"github.com/ataa-platform/ataa/internal/app"
	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/observability"
	"github.com/ataa-platform/ataa/internal/payment"
	"github.com/ataa-platform/ataa/internal/project"
	"github.com/ataa-platform/ataa/internal/shared"
	"github.com/ataa-platform/ataa/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	orchestrator := donation.NewOrchestrator(cfg.PaymentFunctionURL, &http.Client{Timeout: cfg.PaymentTimeout}, logger)
	donationService := donation.NewService(donation.NewRepository(pool), orchestrator)

	auditLogger := shared.NewAuditLogger(pool)
	projectService := project.NewService(project.NewRepository(pool), auditLogger, logger)

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	analyticsService := analytics.NewService(analytics.NewRepository(pool), analyticsCache)

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

	idempotencyStore := shared.NewIdempotencyStore(pool)
	processor := payment.NewStripeProcessor(func() string { return cfg.StripeSecretKey })
	settlement := payment.NewSettlement(logger, donationService, idempotencyStore, projectService, analyticsService, jobClient)

	reconcileJob := &jobs.ReconcileJob{
		Donations:  donationService,
		Processor:  processor,
		Settlement: settlement,
		Keys:       idempotencyStore,
		Logger:     logger,
		Metrics:    metrics,
	}
	warmupJob := &jobs.AnalyticsWarmupJob{Analytics: analyticsService, Logger: logger, Metrics: metrics}
	receiptJob := &jobs.ReceiptJob{Logger: logger}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPaymentReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskSendReceipt, Handler: receiptJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: jobs.NewPaymentReconcileTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: jobs.NewAnalyticsWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := analyticsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("analytics invalidation listener", slog.Any("error", err))
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
