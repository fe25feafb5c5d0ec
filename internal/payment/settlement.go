package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/shared"
)

// ProjectCrediter bumps a project's raised amount for settled donations.
type ProjectCrediter interface {
	CreditRaised(ctx context.Context, projectID, amountMinor int64) error
}

// CacheBumper invalidates cached analytics after a settlement.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// ReceiptEnqueuer schedules a thank-you receipt for the donor.
type ReceiptEnqueuer interface {
	EnqueueReceipt(ctx context.Context, email string, amountMinor int64, currency string) error
}

// IdempotencyGuard deduplicates settlement by processor session id.
// *shared.IdempotencyStore implements it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Settlement applies the effects of a finished checkout session exactly
// once, keyed by the processor's session id. Both the webhook consumer and
// the reconciliation job funnel through it.
type Settlement struct {
	logger      *slog.Logger
	donations   *donation.Service
	idempotency IdempotencyGuard
	projects    ProjectCrediter
	cache       CacheBumper
	receipts    ReceiptEnqueuer
}

// NewSettlement constructs a Settlement. projects, cache, and receipts are
// optional.
func NewSettlement(logger *slog.Logger, donations *donation.Service, idempotency IdempotencyGuard, projects ProjectCrediter, cache CacheBumper, receipts ReceiptEnqueuer) *Settlement {
	return &Settlement{
		logger:      logger,
		donations:   donations,
		idempotency: idempotency,
		projects:    projects,
		cache:       cache,
		receipts:    receipts,
	}
}

const idempotencyModule = "payment.settlement"

// SettleCompleted marks the donation behind the session as paid, inserting
// the record from session metadata when no pending row exists. Replays of
// the same session are no-ops.
func (s *Settlement) SettleCompleted(ctx context.Context, sess CheckoutSession) error {
	if sess.ID == "" {
		return errors.New("payment: settlement requires a session id")
	}
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, sess.ID, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil
			}
			return err
		}
	}

	if err := s.apply(ctx, sess); err != nil {
		// Roll the key back so the processor's retry can settle later.
		if s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, sess.ID); delErr != nil && s.logger != nil {
				s.logger.Error("rollback idempotency key", slog.Any("error", delErr))
			}
		}
		return err
	}
	return nil
}

func (s *Settlement) apply(ctx context.Context, sess CheckoutSession) error {
	record, err := s.donations.GetBySessionID(ctx, sess.ID)
	switch {
	case err == nil:
		if err := s.donations.SettleBySession(ctx, sess.ID, donation.StatusPaid); err != nil {
			return err
		}
		record.Status = donation.StatusPaid
	case errors.Is(err, shared.ErrNotFound):
		record = donationFromSession(sess)
		if _, err := s.donations.RecordSettled(ctx, record); err != nil {
			return err
		}
	default:
		return err
	}

	if s.projects != nil && record.ProjectID != nil {
		if err := s.projects.CreditRaised(ctx, *record.ProjectID, record.AmountMinor); err != nil {
			return err
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
			s.logger.Warn("bump analytics cache", slog.Any("error", err))
		}
	}
	if s.receipts != nil && record.DonorEmail != "" && !record.IsAnonymous {
		if err := s.receipts.EnqueueReceipt(ctx, record.DonorEmail, record.AmountMinor, record.Currency); err != nil && s.logger != nil {
			s.logger.Warn("enqueue receipt", slog.Any("error", err))
		}
	}
	return nil
}

// SettleExpired marks the pending donation behind an abandoned session as
// failed. Missing records are ignored.
func (s *Settlement) SettleExpired(ctx context.Context, sessionID string) error {
	err := s.donations.SettleBySession(ctx, sessionID, donation.StatusFailed)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

func donationFromSession(sess CheckoutSession) donation.Donation {
	d := donation.Donation{
		AmountMinor:        sess.AmountMinor,
		Currency:           sess.Currency,
		DonorName:          sess.Metadata["name"],
		DonorEmail:         sess.CustomerEmail,
		DonorPhone:         sess.Metadata["phone"],
		IsAnonymous:        sess.Metadata["isAnonymous"] == "true",
		PaymentMethod:      sess.Metadata["paymentMethod"],
		ProcessorSessionID: sess.ID,
		Status:             donation.StatusPaid,
	}
	if raw := sess.Metadata["projectId"]; raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			d.ProjectID = &id
		}
	}
	return d
}
