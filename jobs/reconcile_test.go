package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/ataa/internal/donation"
	"github.com/ataa-platform/ataa/internal/observability"
	"github.com/ataa-platform/ataa/internal/payment"
	"github.com/ataa-platform/ataa/internal/shared"
	"github.com/ataa-platform/ataa/jobs"
	_ "github.com/ataa-platform/ataa/testing"
)

type memoryDonationRepo struct {
	rows map[string]donation.Donation
	next int64
}

func newMemoryDonationRepo() *memoryDonationRepo {
	return &memoryDonationRepo{rows: make(map[string]donation.Donation)}
}

func (r *memoryDonationRepo) Insert(ctx context.Context, d donation.Donation) (int64, error) {
	r.next++
	d.ID = r.next
	r.rows[d.ProcessorSessionID] = d
	return d.ID, nil
}

func (r *memoryDonationRepo) List(ctx context.Context, filters donation.ListFilters) ([]donation.Donation, int, error) {
	return nil, 0, nil
}

func (r *memoryDonationRepo) Summarize(ctx context.Context) (donation.Summary, error) {
	return donation.Summary{}, nil
}

func (r *memoryDonationRepo) GetBySessionID(ctx context.Context, sessionID string) (donation.Donation, error) {
	d, ok := r.rows[sessionID]
	if !ok {
		return donation.Donation{}, shared.ErrNotFound
	}
	return d, nil
}

func (r *memoryDonationRepo) UpdateStatusBySessionID(ctx context.Context, sessionID string, status donation.Status) error {
	d, ok := r.rows[sessionID]
	if !ok {
		return shared.ErrNotFound
	}
	d.Status = status
	r.rows[sessionID] = d
	return nil
}

func (r *memoryDonationRepo) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]donation.Donation, error) {
	var out []donation.Donation
	for _, d := range r.rows {
		if d.Status == donation.StatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

type sessionStates struct {
	sessions map[string]payment.CheckoutSession
}

func (p *sessionStates) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (payment.CheckoutSession, error) {
	return payment.CheckoutSession{}, errors.New("not used")
}

func (p *sessionStates) GetCheckoutSession(ctx context.Context, id string) (payment.CheckoutSession, error) {
	sess, ok := p.sessions[id]
	if !ok {
		return payment.CheckoutSession{}, errors.New("no such session")
	}
	return sess, nil
}

type noopGuard struct{}

func (noopGuard) CheckAndInsert(ctx context.Context, key, module string) error { return nil }
func (noopGuard) Delete(ctx context.Context, key string) error                 { return nil }

func TestReconcileSettlesStalePending(t *testing.T) {
	repo := newMemoryDonationRepo()
	service := donation.NewService(repo, nil)
	for _, id := range []string{"cs_paid", "cs_expired", "cs_open"} {
		_, err := service.RecordPending(context.Background(), donation.Donation{AmountMinor: 1000, ProcessorSessionID: id})
		require.NoError(t, err)
	}

	processor := &sessionStates{sessions: map[string]payment.CheckoutSession{
		"cs_paid":    {ID: "cs_paid", Status: "complete", PaymentStatus: "paid", AmountMinor: 1000},
		"cs_expired": {ID: "cs_expired", Status: "expired", PaymentStatus: "unpaid"},
		"cs_open":    {ID: "cs_open", Status: "open", PaymentStatus: "unpaid"},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := &jobs.ReconcileJob{
		Donations:  service,
		Processor:  processor,
		Settlement: payment.NewSettlement(logger, service, noopGuard{}, nil, nil, nil),
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
	}

	require.NoError(t, job.Handle(context.Background(), jobs.NewPaymentReconcileTask()))

	paid, err := repo.GetBySessionID(context.Background(), "cs_paid")
	require.NoError(t, err)
	require.Equal(t, donation.StatusPaid, paid.Status)

	expired, err := repo.GetBySessionID(context.Background(), "cs_expired")
	require.NoError(t, err)
	require.Equal(t, donation.StatusFailed, expired.Status)

	open, err := repo.GetBySessionID(context.Background(), "cs_open")
	require.NoError(t, err)
	require.Equal(t, donation.StatusPending, open.Status, "open sessions stay pending")
}

func TestReconcileSurvivesLookupFailures(t *testing.T) {
	repo := newMemoryDonationRepo()
	service := donation.NewService(repo, nil)
	_, err := service.RecordPending(context.Background(), donation.Donation{AmountMinor: 500, ProcessorSessionID: "cs_gone"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := &jobs.ReconcileJob{
		Donations:  service,
		Processor:  &sessionStates{sessions: map[string]payment.CheckoutSession{}},
		Settlement: payment.NewSettlement(logger, service, noopGuard{}, nil, nil, nil),
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
	}

	require.NoError(t, job.Handle(context.Background(), jobs.NewPaymentReconcileTask()))

	still, err := repo.GetBySessionID(context.Background(), "cs_gone")
	require.NoError(t, err)
	require.Equal(t, donation.StatusPending, still.Status)
}

func TestFormatAmount(t *testing.T) {
	require.Contains(t, jobs.FormatAmount(150000, "sar"), "1,500")
	require.Equal(t, "10.00 ZZZ", jobs.FormatAmount(1000, "zzz"))
}
