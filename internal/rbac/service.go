package rbac

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ataa-platform/ataa/internal/shared"
)

// ErrForbidden indicates the acting role may not perform the operation.
var ErrForbidden = shared.ErrForbidden

// Repository defines persistence operations for role assignments.
type Repository interface {
	ListAssignments(ctx context.Context, userID int64) ([]Assignment, error)
	ReplaceAssignment(ctx context.Context, userID int64, role Role) error
}

// Service resolves effective roles and applies role mutations.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ResolveRole derives the effective role for a user. The oldest assignment
// wins when legacy data carries more than one; users without an assignment
// default to RoleUser.
func (s *Service) ResolveRole(ctx context.Context, userID int64) (Role, error) {
	assignments, err := s.repo.ListAssignments(ctx, userID)
	if err != nil {
		return RoleUser, err
	}
	if len(assignments) == 0 {
		return RoleUser, nil
	}
	role, err := ParseRole(assignments[0].Role.String())
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("unknown stored role, defaulting to user",
				slog.Int64("user_id", userID), slog.String("role", assignments[0].Role.String()))
		}
		return RoleUser, nil
	}
	return role, nil
}

// SetRole replaces the target's role assignment. Only admins may mutate
// roles; the replace runs in a single transaction so the target is never
// left without an assignment.
func (s *Service) SetRole(ctx context.Context, actor AuthSession, targetID int64, newRole Role) error {
	if !Allows(actor.Role, CapManageRoles) {
		return ErrForbidden
	}
	if _, err := ParseRole(newRole.String()); err != nil {
		return err
	}
	if err := s.repo.ReplaceAssignment(ctx, targetID, newRole); err != nil {
		return err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "role.set",
			Entity:   "user",
			EntityID: strconv.FormatInt(targetID, 10),
			Meta:     map[string]any{"role": newRole.String()},
		}); err != nil && s.logger != nil {
			s.logger.Warn("audit role change", slog.Any("error", err))
		}
	}
	return nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListAssignments returns the user's role records, oldest first.
func (r *PGRepository) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		var role string
		if err := rows.Scan(&a.UserID, &role, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = Role(role)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// ReplaceAssignment swaps the user's role records for a single new one.
// Delete and insert commit together; a failed insert rolls back the delete.
func (r *PGRepository) ReplaceAssignment(ctx context.Context, userID int64, role Role) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, NOW())`, userID, role.String())
		return err
	})
}

var _ Repository = (*PGRepository)(nil)
