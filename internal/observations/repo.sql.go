package observations

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/db"
	"github.com/aurora-portal/aurora/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool   *pgxpool.Pool
	engine *access.Engine
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, engine *access.Engine) *Repository {
	return &Repository{pool: pool, engine: engine}
}

// ListPhotometryForObj returns the obj's photometry visible to the
// closure. Rows shared only with groups outside the closure never
// appear, so two principals can see different light curves for the
// same obj.
func (r *Repository) ListPhotometryForObj(ctx context.Context, c *access.Closure, objID string) ([]Photometry, error) {
	clause, err := r.engine.Filter("photometry", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	n := len(clause.Args) + 1
	sql := `SELECT photometry.id, photometry.obj_id, photometry.mjd, photometry.flux, photometry.fluxerr,
	        photometry.band, photometry.owner_id, photometry.created_at,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM photometry_groups WHERE photometry_id = photometry.id), '{}')
	        FROM photometry
	        WHERE photometry.obj_id = $` + strconv.Itoa(n) + ` AND ` + clause.Rebind(1) + `
	        ORDER BY photometry.mjd`
	args := append(clause.Args, objID)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []Photometry
	for rows.Next() {
		var p Photometry
		if err := rows.Scan(&p.ID, &p.ObjID, &p.MJD, &p.Flux, &p.FluxErr, &p.Band, &p.OwnerID, &p.CreatedAt, &p.GroupIDs); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CreatePhotometry inserts a measurement and its sharing rows in one
// transaction, creating the obj on first contact.
func (r *Repository) CreatePhotometry(ctx context.Context, p Photometry, ra, dec float64) (*Photometry, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO objs (id, ra, dec, created_at) VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (id) DO NOTHING`,
			p.ObjID, ra, dec)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO photometry (obj_id, mjd, flux, fluxerr, band, owner_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
			p.ObjID, p.MJD, p.Flux, p.FluxErr, p.Band, p.OwnerID,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		for _, groupID := range p.GroupIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO photometry_groups (photometry_id, group_id) VALUES ($1, $2)`,
				p.ID, groupID); err != nil {
				return mapPGError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPhotometry fetches one measurement with its sharing set; callers
// authorize first.
func (r *Repository) GetPhotometry(ctx context.Context, id int64) (*Photometry, error) {
	var p Photometry
	err := r.pool.QueryRow(ctx,
		`SELECT id, obj_id, mjd, flux, fluxerr, band, owner_id, created_at,
		 COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM photometry_groups WHERE photometry_id = photometry.id), '{}')
		 FROM photometry WHERE id = $1`, id).
		Scan(&p.ID, &p.ObjID, &p.MJD, &p.Flux, &p.FluxErr, &p.Band, &p.OwnerID, &p.CreatedAt, &p.GroupIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeletePhotometry removes a measurement and its sharing rows.
func (r *Repository) DeletePhotometry(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM photometry_groups WHERE photometry_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM photometry WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListSpectraForObj returns the obj's spectra visible to the closure.
func (r *Repository) ListSpectraForObj(ctx context.Context, c *access.Closure, objID string) ([]Spectrum, error) {
	clause, err := r.engine.Filter("spectrum", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	n := len(clause.Args) + 1
	sql := `SELECT spectra.id, spectra.obj_id, spectra.observed_at, spectra.wavelengths, spectra.fluxes, spectra.owner_id,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM spectrum_groups WHERE spectrum_id = spectra.id), '{}')
	        FROM spectra
	        WHERE spectra.obj_id = $` + strconv.Itoa(n) + ` AND ` + clause.Rebind(1) + `
	        ORDER BY spectra.observed_at`
	args := append(clause.Args, objID)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var spectra []Spectrum
	for rows.Next() {
		var s Spectrum
		if err := rows.Scan(&s.ID, &s.ObjID, &s.ObservedAt, &s.Wavelengths, &s.Fluxes, &s.OwnerID, &s.GroupIDs); err != nil {
			return nil, err
		}
		spectra = append(spectra, s)
	}
	return spectra, rows.Err()
}

// CreateSpectrum inserts a spectrum and its sharing rows.
func (r *Repository) CreateSpectrum(ctx context.Context, s Spectrum) (*Spectrum, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO spectra (obj_id, observed_at, wavelengths, fluxes, owner_id)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			s.ObjID, s.ObservedAt, s.Wavelengths, s.Fluxes, s.OwnerID,
		).Scan(&s.ID)
		if err != nil {
			return mapPGError(err)
		}
		for _, groupID := range s.GroupIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO spectrum_groups (spectrum_id, group_id) VALUES ($1, $2)`,
				s.ID, groupID); err != nil {
				return mapPGError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListThumbnails returns an obj's thumbnails; callers authorize the obj
// first.
func (r *Repository) ListThumbnails(ctx context.Context, objID string) ([]Thumbnail, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, obj_id, type, public_url FROM thumbnails WHERE obj_id = $1 ORDER BY type`, objID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var thumbs []Thumbnail
	for rows.Next() {
		var t Thumbnail
		if err := rows.Scan(&t.ID, &t.ObjID, &t.Type, &t.PublicURL); err != nil {
			return nil, err
		}
		thumbs = append(thumbs, t)
	}
	return thumbs, rows.Err()
}

// MissingThumbnailObjs lists objs that have photometry but lack one of
// the survey thumbnails. Used by the backfill job.
func (r *Repository) MissingThumbnailObjs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT o.id FROM objs o
		 JOIN photometry p ON p.obj_id = o.id
		 WHERE (SELECT COUNT(DISTINCT t.type) FROM thumbnails t
		        WHERE t.obj_id = o.id AND t.type IN ($1, $2, $3)) < 3
		 LIMIT $4`,
		ThumbnailSDSS, ThumbnailPS1, ThumbnailLegacySurvey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ObjCoordinates returns the obj's position for cutout URL building.
func (r *Repository) ObjCoordinates(ctx context.Context, objID string) (ra, dec float64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT ra, dec FROM objs WHERE id = $1`, objID).Scan(&ra, &dec)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, shared.ErrNotFound
	}
	return ra, dec, err
}

// EnsureThumbnail inserts a thumbnail if the obj does not have one of
// that type yet.
func (r *Repository) EnsureThumbnail(ctx context.Context, objID, thumbType, publicURL string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO thumbnails (obj_id, type, public_url)
		 SELECT $1, $2, $3
		 WHERE NOT EXISTS (SELECT 1 FROM thumbnails WHERE obj_id = $1 AND type = $2)`,
		objID, thumbType, publicURL)
	return err
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrNotFound
		}
	}
	return err
}
