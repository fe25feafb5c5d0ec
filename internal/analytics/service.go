package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// TopProject is a leaderboard entry.
type TopProject struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	RaisedMinor int64  `json:"raised_amount"`
}

// Summary is the dashboard analytics payload. Amounts are minor units.
type Summary struct {
	PaidCount      int64        `json:"paid_count"`
	PaidMinor      int64        `json:"paid_amount"`
	PendingCount   int64        `json:"pending_count"`
	PendingMinor   int64        `json:"pending_amount"`
	FailedCount    int64        `json:"failed_count"`
	ProjectCount   int64        `json:"project_count"`
	ActiveProjects int64        `json:"active_project_count"`
	TopProjects    []TopProject `json:"top_projects"`
}

// Repository exposes the aggregate queries the summary needs.
type Repository interface {
	DonationAggregates(ctx context.Context) (Summary, error)
	ProjectCounts(ctx context.Context) (total, active int64, err error)
	TopProjects(ctx context.Context, limit int) ([]TopProject, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// DonationAggregates returns per-status counts and sums in one scan.
func (r *PGRepository) DonationAggregates(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'paid'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM donations`).Scan(&s.PaidCount, &s.PaidMinor, &s.PendingCount, &s.PendingMinor, &s.FailedCount)
	return s, err
}

// ProjectCounts returns total and active project counts.
func (r *PGRepository) ProjectCounts(ctx context.Context) (int64, int64, error) {
	var total, active int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active') FROM projects`).Scan(&total, &active)
	return total, active, err
}

// TopProjects returns the highest-raising projects.
func (r *PGRepository) TopProjects(ctx context.Context, limit int) ([]TopProject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, raised_amount FROM projects ORDER BY raised_amount DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []TopProject
	for rows.Next() {
		var p TopProject
		if err := rows.Scan(&p.ID, &p.Title, &p.RaisedMinor); err != nil {
			return nil, err
		}
		top = append(top, p)
	}
	return top, rows.Err()
}

const topProjectLimit = 5

// Service coordinates aggregate queries with the cache layer. Concurrent
// summary requests collapse into a single load.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Summary returns the dashboard aggregates, served from cache when fresh.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, keySummary())
	if err != nil {
		return Summary{}, err
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		var summary Summary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.load(ctx)
		})
		return summary, err
	})
	if err != nil {
		return Summary{}, err
	}
	return value.(Summary), nil
}

// Warm populates the summary cache, used by the scheduled warmup task.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Summary(ctx)
	return err
}

// Bump invalidates cached aggregates after a settlement.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) load(ctx context.Context) (Summary, error) {
	summary, err := s.repo.DonationAggregates(ctx)
	if err != nil {
		return Summary{}, err
	}
	total, active, err := s.repo.ProjectCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary.ProjectCount = total
	summary.ActiveProjects = active

	top, err := s.repo.TopProjects(ctx, topProjectLimit)
	if err != nil {
		return Summary{}, err
	}
	if top == nil {
		top = []TopProject{}
	}
	summary.TopProjects = top
	return summary, nil
}
