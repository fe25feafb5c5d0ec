package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ataa-platform/ataa/internal/shared"
)

// ListFilters narrows project listings.
type ListFilters struct {
	Status   Status
	Category string
	Page     int
	PerPage  int
}

// RepositoryPort defines persistence operations for projects.
type RepositoryPort interface {
	Insert(ctx context.Context, p Project) (int64, error)
	Update(ctx context.Context, p Project) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context, filters ListFilters) ([]Project, int, error)
	CreditRaised(ctx context.Context, id, amountMinor int64) error
}

// Repository implements RepositoryPort using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, title, description, category, goal_amount, raised_amount, image_url, status, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.GoalMinor, &p.RaisedMinor, &p.ImageURL, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// Insert stores a new project and returns its id.
func (r *Repository) Insert(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO projects (title, description, category, goal_amount, raised_amount, image_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, NOW(), NOW())
		 RETURNING id`,
		p.Title, p.Description, p.Category, p.GoalMinor, p.ImageURL, string(p.Status)).Scan(&id)
	return id, err
}

// Update rewrites the editable fields of a project.
func (r *Repository) Update(ctx context.Context, p Project) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET title=$2, description=$3, category=$4, goal_amount=$5, image_url=$6, status=$7, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Title, p.Description, p.Category, p.GoalMinor, p.ImageURL, string(p.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a project.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByID fetches a single project.
func (r *Repository) GetByID(ctx context.Context, id int64) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	return scanProject(row)
}

// List returns a filtered, paginated page of projects plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Project, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filters.Page - 1) * filters.PerPage
	args = append(args, filters.PerPage, offset)
	query := `SELECT ` + projectColumns + ` FROM projects` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// CreditRaised bumps the raised amount after a settled donation.
func (r *Repository) CreditRaised(ctx context.Context, id, amountMinor int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET raised_amount = raised_amount + $2, updated_at = NOW() WHERE id = $1`,
		id, amountMinor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
