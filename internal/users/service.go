package users

import (
	"context"

	"github.com/ataa-platform/ataa/internal/rbac"
)

// Service exposes the admin user directory and role mutations.
type Service struct {
	repo  Repository
	roles *rbac.Service
}

// NewService constructs a Service.
func NewService(repo Repository, roles *rbac.Service) *Service {
	return &Service{repo: repo, roles: roles}
}

// List returns a directory page.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Record, int, error) {
	return s.repo.List(ctx, page, perPage)
}

// SetRole replaces the target's role. Authorization and auditing live in the
// rbac service.
func (s *Service) SetRole(ctx context.Context, actor rbac.AuthSession, targetID int64, role string) error {
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return err
	}
	return s.roles.SetRole(ctx, actor, targetID, parsed)
}
