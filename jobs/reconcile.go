package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/observability"
	"github.com/ataa-platform/ataa/internal/payment"
)

// PendingAge is how long a donation may sit pending before the reconciler
// re-checks it with the processor.
const PendingAge = time.Hour

// keyRetention is how long settled session keys stay around. Well past the
// processor's webhook retry window.
const keyRetention = 30 * 24 * time.Hour

// KeyCleaner prunes old idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// ReconcileJob walks stale pending donations and settles them from the
// processor's view of the session. Redirect query parameters are never
// consulted; this job and the webhook are the only status writers.
type ReconcileJob struct {
	Donations  *donation.Service
	Processor  payment.Processor
	Settlement *payment.Settlement
	Keys       KeyCleaner
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Handle processes TaskPaymentReconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Donations == nil || j.Processor == nil || j.Settlement == nil {
		return errors.New("reconcile: handler not configured")
	}

	pending, err := j.Donations.ListPendingOlderThan(ctx, PendingAge)
	if err != nil {
		j.Metrics.ObserveJob(TaskPaymentReconcile, "error")
		return err
	}

	var settled, expired, failed int
	for _, d := range pending {
		sess, err := j.Processor.GetCheckoutSession(ctx, d.ProcessorSessionID)
		if err != nil {
			failed++
			if j.Logger != nil {
				j.Logger.Warn("reconcile lookup failed",
					slog.String("session_id", d.ProcessorSessionID), slog.Any("error", err))
			}
			continue
		}
		switch {
		case sess.PaymentStatus == "paid":
			if err := j.Settlement.SettleCompleted(ctx, sess); err != nil {
				failed++
				continue
			}
			settled++
			j.Metrics.ObserveDonation(string(donation.StatusPaid))
		case sess.Status == "expired":
			if err := j.Settlement.SettleExpired(ctx, sess.ID); err != nil {
				failed++
				continue
			}
			expired++
			j.Metrics.ObserveDonation(string(donation.StatusFailed))
		}
		// Open sessions stay pending until the donor finishes or abandons.
	}

	if j.Keys != nil {
		if err := j.Keys.Cleanup(ctx, keyRetention); err != nil && j.Logger != nil {
			j.Logger.Warn("idempotency cleanup", slog.Any("error", err))
		}
	}

	if j.Logger != nil {
		j.Logger.Info("payment reconcile finished",
			slog.Int("checked", len(pending)),
			slog.Int("settled", settled),
			slog.Int("expired", expired),
			slog.Int("failed", failed))
	}
	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	j.Metrics.ObserveJob(TaskPaymentReconcile, outcome)
	return nil
}
