package catalog

import (
	"context"
	"fmt"

	"github.com/aurora-portal/aurora/internal/access"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListObjsAccessible(ctx context.Context, c *access.Closure, limit int) ([]Obj, error)
	GetObj(ctx context.Context, id string) (*Obj, error)
	UpsertObj(ctx context.Context, o Obj) error
	ListSourcesAccessible(ctx context.Context, c *access.Closure, limit int) ([]Source, error)
	SaveSource(ctx context.Context, obj Obj, groupID, savedBy int64) (*Source, error)
	ListCandidatesAccessible(ctx context.Context, c *access.Closure, limit int) ([]Candidate, error)
	CreateCandidate(ctx context.Context, obj Obj, filterID int64) (*Candidate, error)
	ListFiltersAccessible(ctx context.Context, c *access.Closure) ([]Filter, error)
	CreateFilter(ctx context.Context, f Filter) (*Filter, error)
	DeleteFilter(ctx context.Context, id int64) error
	GroupHasStream(ctx context.Context, groupID, streamID int64) (bool, error)
	ListStreamsAccessible(ctx context.Context, c *access.Closure) ([]Stream, error)
	CreateStream(ctx context.Context, name string) (*Stream, error)
	GrantStream(ctx context.Context, streamID, groupID int64) error
}

// Service handles catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListObjs returns objs visible to the closure.
func (s *Service) ListObjs(ctx context.Context, c *access.Closure, limit int) ([]Obj, error) {
	return s.repo.ListObjsAccessible(ctx, c, limit)
}

// GetObj fetches one obj; callers authorize first.
func (s *Service) GetObj(ctx context.Context, id string) (*Obj, error) {
	return s.repo.GetObj(ctx, id)
}

// ListSources returns saved sources visible to the closure.
func (s *Service) ListSources(ctx context.Context, c *access.Closure, limit int) ([]Source, error) {
	return s.repo.ListSourcesAccessible(ctx, c, limit)
}

// SaveSource saves an obj to a group the closure belongs to.
func (s *Service) SaveSource(ctx context.Context, c *access.Closure, obj Obj, groupID int64) (*Source, error) {
	if !c.IsAdmin() && !c.InGroup(groupID) {
		return nil, fmt.Errorf("%w: cannot save to group %d", access.ErrAccessDenied, groupID)
	}
	return s.repo.SaveSource(ctx, obj, groupID, c.OwnerUserID())
}

// ListCandidates returns candidates visible to the closure.
func (s *Service) ListCandidates(ctx context.Context, c *access.Closure, limit int) ([]Candidate, error) {
	return s.repo.ListCandidatesAccessible(ctx, c, limit)
}

// CreateCandidate records an obj passing a filter; the handler has
// already authorized write access to the filter.
func (s *Service) CreateCandidate(ctx context.Context, obj Obj, filterID int64) (*Candidate, error) {
	return s.repo.CreateCandidate(ctx, obj, filterID)
}

// ListFilters returns filters visible to the closure.
func (s *Service) ListFilters(ctx context.Context, c *access.Closure) ([]Filter, error) {
	return s.repo.ListFiltersAccessible(ctx, c)
}

// CreateFilter inserts a filter for a group the closure belongs to. The
// group must hold a grant on the filter's stream.
func (s *Service) CreateFilter(ctx context.Context, c *access.Closure, f Filter) (*Filter, error) {
	if !c.IsAdmin() && !c.InGroup(f.GroupID) {
		return nil, fmt.Errorf("%w: cannot create filter for group %d", access.ErrAccessDenied, f.GroupID)
	}
	granted, err := s.repo.GroupHasStream(ctx, f.GroupID, f.StreamID)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, fmt.Errorf("%w: group %d has no access to stream %d", access.ErrAccessDenied, f.GroupID, f.StreamID)
	}
	return s.repo.CreateFilter(ctx, f)
}

// DeleteFilter removes a filter; the handler authorizes write access
// first.
func (s *Service) DeleteFilter(ctx context.Context, id int64) error {
	return s.repo.DeleteFilter(ctx, id)
}

// ListStreams returns streams visible to the closure.
func (s *Service) ListStreams(ctx context.Context, c *access.Closure) ([]Stream, error) {
	return s.repo.ListStreamsAccessible(ctx, c)
}

// CreateStream provisions a stream. Operator only.
func (s *Service) CreateStream(ctx context.Context, c *access.Closure, name string) (*Stream, error) {
	if !c.IsAdmin() {
		return nil, access.ErrAccessDenied
	}
	return s.repo.CreateStream(ctx, name)
}

// GrantStream grants a group access to a stream. Operator only.
func (s *Service) GrantStream(ctx context.Context, c *access.Closure, streamID, groupID int64) error {
	if !c.IsAdmin() {
		return access.ErrAccessDenied
	}
	return s.repo.GrantStream(ctx, streamID, groupID)
}
