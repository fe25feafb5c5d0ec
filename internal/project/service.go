package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ataa-platform/ataa/internal/rbac"
	"github.com/ataa-platform/ataa/internal/shared"
)

// Service exposes project listing and administration.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns projects matching the filters. An empty status lists every
// project; the public handler defaults it to active.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Project, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches a single project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.GetByID(ctx, id)
}

// Input carries the editable project fields.
type Input struct {
	Title       string
	Description string
	Category    string
	GoalMinor   int64
	ImageURL    string
	Status      Status
}

// ErrInvalidInput indicates a rejected project payload.
var ErrInvalidInput = errors.New("project: invalid input")

func (in Input) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.GoalMinor <= 0 {
		return fmt.Errorf("%w: goal amount must be positive", ErrInvalidInput)
	}
	if _, err := ParseStatus(string(in.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Create stores a new project and audits the mutation.
func (s *Service) Create(ctx context.Context, actor rbac.AuthSession, in Input) (Project, error) {
	if err := in.validate(); err != nil {
		return Project{}, err
	}
	p := Project{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		GoalMinor:   in.GoalMinor,
		ImageURL:    in.ImageURL,
		Status:      in.Status,
	}
	id, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actor, "project.create", id, in)
	return s.repo.GetByID(ctx, id)
}

// Update rewrites a project and audits the mutation.
func (s *Service) Update(ctx context.Context, actor rbac.AuthSession, id int64, in Input) (Project, error) {
	if err := in.validate(); err != nil {
		return Project{}, err
	}
	p := Project{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		GoalMinor:   in.GoalMinor,
		ImageURL:    in.ImageURL,
		Status:      in.Status,
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actor, "project.update", id, in)
	return s.repo.GetByID(ctx, id)
}

// Delete removes a project and audits the mutation.
func (s *Service) Delete(ctx context.Context, actor rbac.AuthSession, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "project.delete", id, Input{})
	return nil
}

// CreditRaised adds a settled donation amount to the project counter.
func (s *Service) CreditRaised(ctx context.Context, projectID, amountMinor int64) error {
	return s.repo.CreditRaised(ctx, projectID, amountMinor)
}

func (s *Service) recordAudit(ctx context.Context, actor rbac.AuthSession, action string, id int64, in Input) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{}
	if in.Title != "" {
		meta["title"] = in.Title
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit project mutation", slog.Any("error", err))
	}
}
