package groups

import (
	"context"

	"github.com/aurora-portal/aurora/internal/access"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	ListAccessible(ctx context.Context, c *access.Closure) ([]Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	Create(ctx context.Context, name string, creatorID int64) (*Group, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	Members(ctx context.Context, groupID int64) ([]Member, error)
	IsGroupAdmin(ctx context.Context, groupID, userID int64) (bool, error)
	AddMember(ctx context.Context, groupID, userID int64, admin bool) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// Service handles group business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns the groups visible to the closure.
func (s *Service) List(ctx context.Context, c *access.Closure) ([]Group, error) {
	return s.repo.ListAccessible(ctx, c)
}

// Get fetches one group.
func (s *Service) Get(ctx context.Context, id int64) (*Group, error) {
	return s.repo.GetByID(ctx, id)
}

// Create inserts a group with the closure's user as its first admin.
func (s *Service) Create(ctx context.Context, c *access.Closure, name string) (*Group, error) {
	return s.repo.Create(ctx, name, c.OwnerUserID())
}

// Rename updates a group's name. Single-user groups are renamed only
// through the user lifecycle.
func (s *Service) Rename(ctx context.Context, c *access.Closure, id int64, name string) error {
	if err := s.requireGroupAdmin(ctx, c, id); err != nil {
		return err
	}
	return s.repo.Rename(ctx, id, name)
}

// Delete removes a group. Single-user groups are refused; they go away
// with their user.
func (s *Service) Delete(ctx context.Context, c *access.Closure, id int64) error {
	if err := s.requireGroupAdmin(ctx, c, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Members lists the group's memberships.
func (s *Service) Members(ctx context.Context, groupID int64) ([]Member, error) {
	return s.repo.Members(ctx, groupID)
}

// AddMember adds or updates a membership. Requires the closure to be a
// group admin of the group, or to carry the admin override.
func (s *Service) AddMember(ctx context.Context, c *access.Closure, groupID, userID int64, admin bool) error {
	if err := s.requireGroupAdmin(ctx, c, groupID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, groupID, userID, admin)
}

// RemoveMember removes a membership under the same authority rules as
// AddMember.
func (s *Service) RemoveMember(ctx context.Context, c *access.Closure, groupID, userID int64) error {
	if err := s.requireGroupAdmin(ctx, c, groupID); err != nil {
		return err
	}
	return s.repo.RemoveMember(ctx, groupID, userID)
}

func (s *Service) requireGroupAdmin(ctx context.Context, c *access.Closure, groupID int64) error {
	if c.IsAdmin() || c.HasACL("Manage groups") {
		return nil
	}
	admin, err := s.repo.IsGroupAdmin(ctx, groupID, c.OwnerUserID())
	if err != nil {
		return err
	}
	if !admin {
		return access.ErrAccessDenied
	}
	return nil
}
