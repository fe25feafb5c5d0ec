package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ataa-platform/ataa/internal/analytics"
	"github.com/ataa-platform/ataa/internal/observability"
)

// AnalyticsWarmupJob pre-populates the dashboard summary cache so the first
// admin request after an invalidation stays fast.
type AnalyticsWarmupJob struct {
	Analytics *analytics.Service
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Handle processes TaskAnalyticsWarmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	if err := j.Analytics.Warm(ctx); err != nil {
		if j.Logger != nil {
			j.Logger.Error("analytics warmup", slog.Any("error", err))
		}
		j.Metrics.ObserveJob(TaskAnalyticsWarmup, "error")
		return err
	}
	j.Metrics.ObserveJob(TaskAnalyticsWarmup, "ok")
	return nil
}
