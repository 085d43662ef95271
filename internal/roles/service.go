package roles

import (
	"context"
)

// RepositoryPort defines data access methods for roles and ACL grants.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	ListACLs(ctx context.Context) ([]ACL, error)
	UserRoles(ctx context.Context, userID int64) ([]string, error)
	GrantRole(ctx context.Context, userID int64, roleID string) error
	RevokeRole(ctx context.Context, userID int64, roleID string) error
	GrantACL(ctx context.Context, userID int64, aclID string) error
	RevokeACL(ctx context.Context, userID int64, aclID string) error
}

// Service handles role and ACL administration.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListACLs returns all declared ACLs.
func (s *Service) ListACLs(ctx context.Context) ([]ACL, error) {
	return s.repo.ListACLs(ctx)
}

// UserRoles returns the role ids granted to the user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.UserRoles(ctx, userID)
}

// GrantRole assigns a role to a user. The wider permission set takes
// effect on the user's next request; closures are never cached across
// requests.
func (s *Service) GrantRole(ctx context.Context, userID int64, roleID string) error {
	return s.repo.GrantRole(ctx, userID, roleID)
}

// RevokeRole removes a role grant.
func (s *Service) RevokeRole(ctx context.Context, userID int64, roleID string) error {
	return s.repo.RevokeRole(ctx, userID, roleID)
}

// GrantACL assigns a direct ACL grant.
func (s *Service) GrantACL(ctx context.Context, userID int64, aclID string) error {
	return s.repo.GrantACL(ctx, userID, aclID)
}

// RevokeACL removes a direct ACL grant.
func (s *Service) RevokeACL(ctx context.Context, userID int64, aclID string) error {
	return s.repo.RevokeACL(ctx, userID, aclID)
}
