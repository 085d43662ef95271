package tokens

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurora-portal/aurora/internal/access"
)

// RepositoryPort defines data access methods for tokens.
type RepositoryPort interface {
	ListAccessible(ctx context.Context, c *access.Closure) ([]Token, error)
	Create(ctx context.Context, t Token) (*Token, error)
	Delete(ctx context.Context, id string) error
}

// NewToken carries the requested scope for a token.
type NewToken struct {
	Name   string
	ACLs   []string
	Groups []int64
}

// Service handles token lifecycle logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns the closure's tokens.
func (s *Service) List(ctx context.Context, c *access.Closure) ([]Token, error) {
	return s.repo.ListAccessible(ctx, c)
}

// Create mints a token whose scope is checked against the creator's
// closure: each requested ACL and group must be held by the creator
// right now. The stored scope is frozen; later membership changes of
// the creator never widen it.
func (s *Service) Create(ctx context.Context, c *access.Closure, input NewToken) (*Token, error) {
	for _, acl := range input.ACLs {
		if !c.HasACL(acl) {
			return nil, fmt.Errorf("%w: acl %q exceeds creator scope", access.ErrAccessDenied, acl)
		}
	}
	for _, groupID := range input.Groups {
		if !c.InGroup(groupID) {
			return nil, fmt.Errorf("%w: group %d exceeds creator scope", access.ErrAccessDenied, groupID)
		}
	}
	return s.repo.Create(ctx, Token{
		ID:        uuid.NewString(),
		Name:      input.Name,
		CreatedBy: c.OwnerUserID(),
		ACLs:      input.ACLs,
		Groups:    input.Groups,
	})
}

// Delete removes a token; callers authorize ownership first.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
