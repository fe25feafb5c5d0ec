package donation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ataa-platform/ataa/internal/shared"
)

// ListFilters narrows admin donation listings.
type ListFilters struct {
	Status  Status
	Page    int
	PerPage int
}

// Summary aggregates donation amounts per status.
type Summary struct {
	PaidCount    int   `json:"paid_count"`
	PaidMinor    int64 `json:"paid_minor"`
	PendingCount int   `json:"pending_count"`
	PendingMinor int64 `json:"pending_minor"`
	FailedCount  int   `json:"failed_count"`
}

// RepositoryPort defines data access for donation records.
type RepositoryPort interface {
	Insert(ctx context.Context, d Donation) (int64, error)
	List(ctx context.Context, filters ListFilters) ([]Donation, int, error)
	Summarize(ctx context.Context) (Summary, error)
	GetBySessionID(ctx context.Context, sessionID string) (Donation, error)
	UpdateStatusBySessionID(ctx context.Context, sessionID string, status Status) error
	ListPendingOlderThan(ctx context.Context, age time.Duration) ([]Donation, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const donationColumns = `id, project_id, amount_minor, currency, donor_name, donor_email, donor_phone, is_anonymous, payment_method, processor_session_id, status, created_at, updated_at`

func scanDonation(row pgx.Row) (Donation, error) {
	var d Donation
	var status string
	err := row.Scan(&d.ID, &d.ProjectID, &d.AmountMinor, &d.Currency, &d.DonorName, &d.DonorEmail, &d.DonorPhone,
		&d.IsAnonymous, &d.PaymentMethod, &d.ProcessorSessionID, &status, &d.CreatedAt, &d.UpdatedAt)
	d.Status = Status(status)
	return d, err
}

// Insert stores a donation record and returns its ID.
func (r *Repository) Insert(ctx context.Context, d Donation) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO donations (project_id, amount_minor, currency, donor_name, donor_email, donor_phone, is_anonymous, payment_method, processor_session_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`,
		d.ProjectID, d.AmountMinor, d.Currency, d.DonorName, d.DonorEmail, d.DonorPhone,
		d.IsAnonymous, d.PaymentMethod, d.ProcessorSessionID, string(d.Status)).Scan(&id)
	return id, err
}

// List returns donations matching the filters plus the unpaginated total.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Donation, int, error) {
	if filters.PerPage <= 0 {
		filters.PerPage = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	offset := (filters.Page - 1) * filters.PerPage

	var total int
	if filters.Status != "" {
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM donations WHERE status = $1`, string(filters.Status)).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM donations`).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	query := `SELECT ` + donationColumns + ` FROM donations`
	args := []any{}
	if filters.Status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, string(filters.Status), filters.PerPage, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, filters.PerPage, offset)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var donations []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, 0, err
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}

// Summarize aggregates counts and amounts per status.
func (r *Repository) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'paid'),
			COALESCE(SUM(amount_minor) FILTER (WHERE status = 'paid'), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount_minor) FILTER (WHERE status = 'pending'), 0),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM donations`).
		Scan(&s.PaidCount, &s.PaidMinor, &s.PendingCount, &s.PendingMinor, &s.FailedCount)
	return s, err
}

// GetBySessionID fetches the donation tied to a processor session.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (Donation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE processor_session_id = $1`, sessionID)
	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Donation{}, shared.ErrNotFound
		}
		return Donation{}, err
	}
	return d, nil
}

// UpdateStatusBySessionID transitions the donation keyed by session id.
func (r *Repository) UpdateStatusBySessionID(ctx context.Context, sessionID string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE donations SET status = $1, updated_at = NOW() WHERE processor_session_id = $2`, string(status), sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPendingOlderThan returns pending donations created before the cutoff,
// used by the reconciliation job to settle abandoned checkouts.
func (r *Repository) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]Donation, error) {
	cutoff := time.Now().Add(-age)
	rows, err := r.pool.Query(ctx, `SELECT `+donationColumns+` FROM donations WHERE status = 'pending' AND created_at < $1 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return donations, nil
}

var _ RepositoryPort = (*Repository)(nil)
