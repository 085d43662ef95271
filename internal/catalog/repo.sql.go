package catalog

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

// Repository provides PostgreSQL backed persistence for the catalog.
// Listing queries embed the engine's filter clause so inaccessible rows
// never leave the database.
type Repository struct {
	pool   *pgxpool.Pool
	engine *access.Engine
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, engine *access.Engine) *Repository {
	return &Repository{pool: pool, engine: engine}
}

// ListObjsAccessible returns the objs visible to the closure.
func (r *Repository) ListObjsAccessible(ctx context.Context, c *access.Closure, limit int) ([]Obj, error) {
	clause, err := r.engine.Filter("obj", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	n := len(clause.Args) + 1
	sql := `SELECT objs.id, objs.ra, objs.dec, objs.redshift, objs.created_at
	        FROM objs WHERE ` + clause.Rebind(1) + ` ORDER BY objs.created_at DESC LIMIT $` + placeholder(n)
	args := append(clause.Args, limit)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var objs []Obj
	for rows.Next() {
		var o Obj
		if err := rows.Scan(&o.ID, &o.RA, &o.Dec, &o.Redshift, &o.CreatedAt); err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// GetObj fetches one obj without an access check; callers authorize
// first.
func (r *Repository) GetObj(ctx context.Context, id string) (*Obj, error) {
	var o Obj
	err := r.pool.QueryRow(ctx,
		`SELECT id, ra, dec, redshift, created_at FROM objs WHERE id = $1`, id).
		Scan(&o.ID, &o.RA, &o.Dec, &o.Redshift, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// UpsertObj creates the obj if it does not exist yet. Saving a source
// or posting a candidate for a brand-new object goes through here
// first.
func (r *Repository) UpsertObj(ctx context.Context, o Obj) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO objs (id, ra, dec, redshift, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		o.ID, o.RA, o.Dec, o.Redshift)
	return err
}

// ListSourcesAccessible returns saved sources visible to the closure.
func (r *Repository) ListSourcesAccessible(ctx context.Context, c *access.Closure, limit int) ([]Source, error) {
	clause, err := r.engine.Filter("source", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	n := len(clause.Args) + 1
	sql := `SELECT sources.id, sources.obj_id, sources.group_id, sources.saved_by, sources.saved_at
	        FROM sources WHERE ` + clause.Rebind(1) + ` ORDER BY sources.saved_at DESC LIMIT $` + placeholder(n)
	args := append(clause.Args, limit)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.ObjID, &s.GroupID, &s.SavedBy, &s.SavedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// SaveSource records an obj as saved to a group, creating the obj row
// on first contact.
func (r *Repository) SaveSource(ctx context.Context, obj Obj, groupID, savedBy int64) (*Source, error) {
	var s Source
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO objs (id, ra, dec, redshift, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (id) DO NOTHING`,
			obj.ID, obj.RA, obj.Dec, obj.Redshift)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO sources (obj_id, group_id, saved_by, saved_at)
			 VALUES ($1, $2, $3, NOW())
			 RETURNING id, obj_id, group_id, saved_by, saved_at`,
			obj.ID, groupID, savedBy,
		).Scan(&s.ID, &s.ObjID, &s.GroupID, &s.SavedBy, &s.SavedAt)
		return mapPGError(err)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListCandidatesAccessible returns candidates visible to the closure.
func (r *Repository) ListCandidatesAccessible(ctx context.Context, c *access.Closure, limit int) ([]Candidate, error) {
	clause, err := r.engine.Filter("candidate", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	n := len(clause.Args) + 1
	sql := `SELECT candidates.id, candidates.obj_id, candidates.filter_id, f.group_id, candidates.passed_at
	        FROM candidates
	        JOIN filters f ON f.id = candidates.filter_id
	        WHERE ` + clause.Rebind(1) + ` ORDER BY candidates.passed_at DESC LIMIT $` + placeholder(n)
	args := append(clause.Args, limit)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []Candidate
	for rows.Next() {
		var cand Candidate
		if err := rows.Scan(&cand.ID, &cand.ObjID, &cand.FilterID, &cand.FilterGroupID, &cand.PassedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	return candidates, rows.Err()
}

// CreateCandidate records an obj passing a filter, creating the obj on
// first contact.
func (r *Repository) CreateCandidate(ctx context.Context, obj Obj, filterID int64) (*Candidate, error) {
	var cand Candidate
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO objs (id, ra, dec, redshift, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (id) DO NOTHING`,
			obj.ID, obj.RA, obj.Dec, obj.Redshift)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO candidates (obj_id, filter_id, passed_at)
			 VALUES ($1, $2, NOW())
			 RETURNING id, obj_id, filter_id, passed_at`,
			obj.ID, filterID,
		).Scan(&cand.ID, &cand.ObjID, &cand.FilterID, &cand.PassedAt)
		return mapPGError(err)
	})
	if err != nil {
		return nil, err
	}
	return &cand, nil
}

// ListFiltersAccessible returns filters visible to the closure.
func (r *Repository) ListFiltersAccessible(ctx context.Context, c *access.Closure) ([]Filter, error) {
	clause, err := r.engine.Filter("filter", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	sql := `SELECT filters.id, filters.name, filters.stream_id, filters.group_id
	        FROM filters WHERE ` + clause.Rebind(1) + ` ORDER BY filters.id`
	rows, err := r.pool.Query(ctx, sql, clause.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var filters []Filter
	for rows.Next() {
		var f Filter
		if err := rows.Scan(&f.ID, &f.Name, &f.StreamID, &f.GroupID); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// CreateFilter inserts a filter.
func (r *Repository) CreateFilter(ctx context.Context, f Filter) (*Filter, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO filters (name, stream_id, group_id) VALUES ($1, $2, $3) RETURNING id`,
		f.Name, f.StreamID, f.GroupID,
	).Scan(&f.ID)
	if err != nil {
		return nil, mapPGError(err)
	}
	return &f, nil
}

// DeleteFilter removes a filter.
func (r *Repository) DeleteFilter(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM filters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GroupHasStream reports whether the group was granted access to the
// filter's stream.
func (r *Repository) GroupHasStream(ctx context.Context, groupID, streamID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stream_groups WHERE group_id = $1 AND stream_id = $2)`,
		groupID, streamID,
	).Scan(&ok)
	return ok, err
}

// ListStreamsAccessible returns streams visible to the closure.
func (r *Repository) ListStreamsAccessible(ctx context.Context, c *access.Closure) ([]Stream, error) {
	clause, err := r.engine.Filter("stream", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	sql := `SELECT streams.id, streams.name,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM stream_groups WHERE stream_id = streams.id), '{}')
	        FROM streams WHERE ` + clause.Rebind(1) + ` ORDER BY streams.id`
	rows, err := r.pool.Query(ctx, sql, clause.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var streams []Stream
	for rows.Next() {
		var s Stream
		if err := rows.Scan(&s.ID, &s.Name, &s.GroupIDs); err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, rows.Err()
}

// CreateStream provisions a stream.
func (r *Repository) CreateStream(ctx context.Context, name string) (*Stream, error) {
	var s Stream
	s.Name = name
	err := r.pool.QueryRow(ctx,
		`INSERT INTO streams (name) VALUES ($1) RETURNING id`, name).Scan(&s.ID)
	if err != nil {
		return nil, mapPGError(err)
	}
	s.GroupIDs = []int64{}
	return &s, nil
}

// GrantStream grants a group access to a stream.
func (r *Repository) GrantStream(ctx context.Context, streamID, groupID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO stream_groups (stream_id, group_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		streamID, groupID)
	return mapPGError(err)
}

func placeholder(n int) string {
	return strconv.Itoa(n)
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
