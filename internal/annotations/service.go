package annotations

import (
	"context"
	"fmt"

	"github.com/aurora-portal/aurora/internal/access"
)

// RepositoryPort defines data access methods for annotations.
type RepositoryPort interface {
	ListCommentsForObj(ctx context.Context, c *access.Closure, objID string) ([]Comment, error)
	CreateComment(ctx context.Context, cm Comment) (*Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	ListAnnotationsForObj(ctx context.Context, c *access.Closure, objID string) ([]Annotation, error)
	CreateAnnotation(ctx context.Context, a Annotation) (*Annotation, error)
	ListClassificationsForObj(ctx context.Context, c *access.Closure, objID string) ([]Classification, error)
	CreateClassification(ctx context.Context, cl Classification) (*Classification, error)
	DeleteClassification(ctx context.Context, id int64) error
	ListFollowupRequestsForObj(ctx context.Context, c *access.Closure, objID string) ([]FollowupRequest, error)
	CreateFollowupRequest(ctx context.Context, f FollowupRequest) (*FollowupRequest, error)
	UpdateFollowupStatus(ctx context.Context, id int64, status string) error
}

// Service handles annotation business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListComments returns the obj's comments visible to the closure.
func (s *Service) ListComments(ctx context.Context, c *access.Closure, objID string) ([]Comment, error) {
	return s.repo.ListCommentsForObj(ctx, c, objID)
}

// PostComment stores a comment shared with the given groups.
func (s *Service) PostComment(ctx context.Context, c *access.Closure, cm Comment) (*Comment, error) {
	if err := checkShareScope(c, cm.GroupIDs); err != nil {
		return nil, err
	}
	cm.AuthorID = c.OwnerUserID()
	return s.repo.CreateComment(ctx, cm)
}

// DeleteComment removes a comment; the handler authorizes authorship
// first.
func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	return s.repo.DeleteComment(ctx, id)
}

// ListAnnotations returns the obj's annotations visible to the closure.
func (s *Service) ListAnnotations(ctx context.Context, c *access.Closure, objID string) ([]Annotation, error) {
	return s.repo.ListAnnotationsForObj(ctx, c, objID)
}

// PostAnnotation stores an annotation shared with the given groups.
func (s *Service) PostAnnotation(ctx context.Context, c *access.Closure, a Annotation) (*Annotation, error) {
	if err := checkShareScope(c, a.GroupIDs); err != nil {
		return nil, err
	}
	a.AuthorID = c.OwnerUserID()
	return s.repo.CreateAnnotation(ctx, a)
}

// ListClassifications returns the obj's classifications visible to the
// closure.
func (s *Service) ListClassifications(ctx context.Context, c *access.Closure, objID string) ([]Classification, error) {
	return s.repo.ListClassificationsForObj(ctx, c, objID)
}

// PostClassification stores a classification shared with the given
// groups.
func (s *Service) PostClassification(ctx context.Context, c *access.Closure, cl Classification) (*Classification, error) {
	if err := checkShareScope(c, cl.GroupIDs); err != nil {
		return nil, err
	}
	cl.AuthorID = c.OwnerUserID()
	return s.repo.CreateClassification(ctx, cl)
}

// DeleteClassification removes a classification; the handler authorizes
// authorship first.
func (s *Service) DeleteClassification(ctx context.Context, id int64) error {
	return s.repo.DeleteClassification(ctx, id)
}

// ListFollowupRequests returns the obj's followup requests visible to
// the closure.
func (s *Service) ListFollowupRequests(ctx context.Context, c *access.Closure, objID string) ([]FollowupRequest, error) {
	return s.repo.ListFollowupRequestsForObj(ctx, c, objID)
}

// RequestFollowup stores a followup request shared with the given
// groups. The closure's user becomes the requester.
func (s *Service) RequestFollowup(ctx context.Context, c *access.Closure, f FollowupRequest) (*FollowupRequest, error) {
	if err := checkShareScope(c, f.GroupIDs); err != nil {
		return nil, err
	}
	f.RequesterID = c.OwnerUserID()
	return s.repo.CreateFollowupRequest(ctx, f)
}

// UpdateFollowupStatus changes a request's status; the handler
// authorizes the requester first.
func (s *Service) UpdateFollowupStatus(ctx context.Context, id int64, status string) error {
	return s.repo.UpdateFollowupStatus(ctx, id, status)
}

func checkShareScope(c *access.Closure, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return fmt.Errorf("%w: at least one group is required", access.ErrAccessDenied)
	}
	if c.IsAdmin() {
		return nil
	}
	for _, id := range groupIDs {
		if !c.InGroup(id) {
			return fmt.Errorf("%w: cannot share with group %d", access.ErrAccessDenied, id)
		}
	}
	return nil
}
