package observations

import (
	"context"
	"fmt"

	"github.com/aurora-portal/aurora/internal/access"
)

// RepositoryPort defines data access methods for observations.
type RepositoryPort interface {
	ListPhotometryForObj(ctx context.Context, c *access.Closure, objID string) ([]Photometry, error)
	CreatePhotometry(ctx context.Context, p Photometry, ra, dec float64) (*Photometry, error)
	GetPhotometry(ctx context.Context, id int64) (*Photometry, error)
	DeletePhotometry(ctx context.Context, id int64) error
	ListSpectraForObj(ctx context.Context, c *access.Closure, objID string) ([]Spectrum, error)
	CreateSpectrum(ctx context.Context, s Spectrum) (*Spectrum, error)
	ListThumbnails(ctx context.Context, objID string) ([]Thumbnail, error)
	MissingThumbnailObjs(ctx context.Context, limit int) ([]string, error)
	ObjCoordinates(ctx context.Context, objID string) (ra, dec float64, err error)
	EnsureThumbnail(ctx context.Context, objID, thumbType, publicURL string) error
}

// Service handles observation business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListPhotometry returns the obj's photometry visible to the closure.
func (s *Service) ListPhotometry(ctx context.Context, c *access.Closure, objID string) ([]Photometry, error) {
	return s.repo.ListPhotometryForObj(ctx, c, objID)
}

// UploadPhotometry stores a measurement shared with the given groups.
// The uploader may only share with groups in its own closure.
func (s *Service) UploadPhotometry(ctx context.Context, c *access.Closure, p Photometry, ra, dec float64) (*Photometry, error) {
	if err := checkShareScope(c, p.GroupIDs); err != nil {
		return nil, err
	}
	p.OwnerID = c.OwnerUserID()
	return s.repo.CreatePhotometry(ctx, p, ra, dec)
}

// DeletePhotometry removes a measurement; the handler authorizes write
// access first.
func (s *Service) DeletePhotometry(ctx context.Context, id int64) error {
	return s.repo.DeletePhotometry(ctx, id)
}

// ListSpectra returns the obj's spectra visible to the closure.
func (s *Service) ListSpectra(ctx context.Context, c *access.Closure, objID string) ([]Spectrum, error) {
	return s.repo.ListSpectraForObj(ctx, c, objID)
}

// UploadSpectrum stores a spectrum shared with the given groups.
func (s *Service) UploadSpectrum(ctx context.Context, c *access.Closure, sp Spectrum) (*Spectrum, error) {
	if err := checkShareScope(c, sp.GroupIDs); err != nil {
		return nil, err
	}
	sp.OwnerID = c.OwnerUserID()
	return s.repo.CreateSpectrum(ctx, sp)
}

// ListThumbnails returns the obj's thumbnails; the handler authorizes
// obj readability first.
func (s *Service) ListThumbnails(ctx context.Context, objID string) ([]Thumbnail, error) {
	return s.repo.ListThumbnails(ctx, objID)
}

// BackfillThumbnails creates the missing survey thumbnails for one obj.
func (s *Service) BackfillThumbnails(ctx context.Context, objID string) error {
	ra, dec, err := s.repo.ObjCoordinates(ctx, objID)
	if err != nil {
		return err
	}
	for _, thumbType := range []string{ThumbnailSDSS, ThumbnailPS1, ThumbnailLegacySurvey} {
		url, _ := CutoutURL(thumbType, ra, dec)
		if err := s.repo.EnsureThumbnail(ctx, objID, thumbType, url); err != nil {
			return fmt.Errorf("observations: ensure %s thumbnail for %s: %w", thumbType, objID, err)
		}
	}
	return nil
}

// MissingThumbnailObjs lists backfill candidates.
func (s *Service) MissingThumbnailObjs(ctx context.Context, limit int) ([]string, error) {
	return s.repo.MissingThumbnailObjs(ctx, limit)
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
