package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines read operations for the admin user directory.
type Repository interface {
	List(ctx context.Context, page, perPage int) ([]Record, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns profiles joined with the oldest role assignment; accounts
// without one read as regular users.
func (r *PGRepository) List(ctx context.Context, page, perPage int) ([]Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.email, p.name, p.is_active, COALESCE(ur.role, 'user'), p.created_at
		FROM profiles p
		LEFT JOIN LATERAL (
			SELECT role FROM user_roles WHERE user_id = p.id ORDER BY created_at LIMIT 1
		) ur ON TRUE
		ORDER BY p.created_at
		LIMIT $1 OFFSET $2`, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.Name, &rec.IsActive, &rec.Role, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

var _ Repository = (*PGRepository)(nil)
