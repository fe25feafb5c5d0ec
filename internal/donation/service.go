package donation

import (
	"context"
	"time"
)

// SessionCreator abstracts the orchestrator for handler tests.
type SessionCreator interface {
	CreateSession(ctx context.Context, intent Intent) (Session, error)
}

// Service exposes checkout and admin donation operations.
type Service struct {
	repo         RepositoryPort
	orchestrator SessionCreator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, orchestrator SessionCreator) *Service {
	return &Service{repo: repo, orchestrator: orchestrator}
}

// Checkout submits the intent and returns the checkout redirect.
func (s *Service) Checkout(ctx context.Context, intent Intent) (Session, error) {
	return s.orchestrator.CreateSession(ctx, intent)
}

// List returns donations for the admin dashboard.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Donation, int, error) {
	return s.repo.List(ctx, filters)
}

// Summarize aggregates donation totals per status.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	return s.repo.Summarize(ctx)
}

// RecordPending stores the donation opened alongside a checkout session.
func (s *Service) RecordPending(ctx context.Context, d Donation) (int64, error) {
	d.Status = StatusPending
	return s.repo.Insert(ctx, d)
}

// RecordSettled inserts a donation already known to be settled, used when
// the webhook observes a session with no matching pending record.
func (s *Service) RecordSettled(ctx context.Context, d Donation) (int64, error) {
	if d.Status == "" {
		d.Status = StatusPaid
	}
	return s.repo.Insert(ctx, d)
}

// GetBySessionID fetches the donation tied to a processor session.
func (s *Service) GetBySessionID(ctx context.Context, sessionID string) (Donation, error) {
	return s.repo.GetBySessionID(ctx, sessionID)
}

// SettleBySession transitions the donation keyed by processor session id.
func (s *Service) SettleBySession(ctx context.Context, sessionID string, status Status) error {
	return s.repo.UpdateStatusBySessionID(ctx, sessionID, status)
}

// ListPendingOlderThan exposes stale pending donations for reconciliation.
func (s *Service) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]Donation, error) {
	return s.repo.ListPendingOlderThan(ctx, age)
}
