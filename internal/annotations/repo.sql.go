package annotations

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

// objFilterSQL builds the accessible-rows clause for one entity type
// scoped to a single obj.
func (r *Repository) objFilter(typeName, table string, c *access.Closure) (string, []any, error) {
	clause, err := r.engine.Filter(typeName, c, access.ModeRead)
	if err != nil {
		return "", nil, err
	}
	n := len(clause.Args) + 1
	where := table + `.obj_id = $` + strconv.Itoa(n) + ` AND ` + clause.Rebind(1)
	return where, clause.Args, nil
}

// ListCommentsForObj returns the obj's comments visible to the closure.
func (r *Repository) ListCommentsForObj(ctx context.Context, c *access.Closure, objID string) ([]Comment, error) {
	where, args, err := r.objFilter("comment", "comments", c)
	if err != nil {
		return nil, err
	}
	sql := `SELECT comments.id, comments.obj_id, comments.author_id, comments.text, comments.created_at,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM comment_groups WHERE comment_id = comments.id), '{}')
	        FROM comments WHERE ` + where + ` ORDER BY comments.created_at`
	rows, err := r.pool.Query(ctx, sql, append(args, objID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var cm Comment
		if err := rows.Scan(&cm.ID, &cm.ObjID, &cm.AuthorID, &cm.Text, &cm.CreatedAt, &cm.GroupIDs); err != nil {
			return nil, err
		}
		comments = append(comments, cm)
	}
	return comments, rows.Err()
}

// CreateComment inserts a comment and its sharing rows.
func (r *Repository) CreateComment(ctx context.Context, cm Comment) (*Comment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO comments (obj_id, author_id, text, created_at)
			 VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`,
			cm.ObjID, cm.AuthorID, cm.Text,
		).Scan(&cm.ID, &cm.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		return insertShares(ctx, tx, `INSERT INTO comment_groups (comment_id, group_id) VALUES ($1, $2)`, cm.ID, cm.GroupIDs)
	})
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// DeleteComment removes a comment and its sharing rows.
func (r *Repository) DeleteComment(ctx context.Context, id int64) error {
	return r.deleteWithShares(ctx, `DELETE FROM comment_groups WHERE comment_id = $1`, `DELETE FROM comments WHERE id = $1`, id)
}

// ListAnnotationsForObj returns the obj's annotations visible to the
// closure.
func (r *Repository) ListAnnotationsForObj(ctx context.Context, c *access.Closure, objID string) ([]Annotation, error) {
	where, args, err := r.objFilter("annotation", "annotations", c)
	if err != nil {
		return nil, err
	}
	sql := `SELECT annotations.id, annotations.obj_id, annotations.author_id, annotations.origin, annotations.data, annotations.created_at,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM annotation_groups WHERE annotation_id = annotations.id), '{}')
	        FROM annotations WHERE ` + where + ` ORDER BY annotations.created_at`
	rows, err := r.pool.Query(ctx, sql, append(args, objID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Annotation
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(&a.ID, &a.ObjID, &a.AuthorID, &a.Origin, &a.Data, &a.CreatedAt, &a.GroupIDs); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// CreateAnnotation inserts an annotation and its sharing rows.
func (r *Repository) CreateAnnotation(ctx context.Context, a Annotation) (*Annotation, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO annotations (obj_id, author_id, origin, data, created_at)
			 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at`,
			a.ObjID, a.AuthorID, a.Origin, a.Data,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		return insertShares(ctx, tx, `INSERT INTO annotation_groups (annotation_id, group_id) VALUES ($1, $2)`, a.ID, a.GroupIDs)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListClassificationsForObj returns the obj's classifications visible
// to the closure.
func (r *Repository) ListClassificationsForObj(ctx context.Context, c *access.Closure, objID string) ([]Classification, error) {
	where, args, err := r.objFilter("classification", "classifications", c)
	if err != nil {
		return nil, err
	}
	sql := `SELECT classifications.id, classifications.obj_id, classifications.author_id, classifications.label,
	        classifications.probability, classifications.created_at,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM classification_groups WHERE classification_id = classifications.id), '{}')
	        FROM classifications WHERE ` + where + ` ORDER BY classifications.created_at`
	rows, err := r.pool.Query(ctx, sql, append(args, objID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Classification
	for rows.Next() {
		var cl Classification
		if err := rows.Scan(&cl.ID, &cl.ObjID, &cl.AuthorID, &cl.Label, &cl.Probability, &cl.CreatedAt, &cl.GroupIDs); err != nil {
			return nil, err
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}

// CreateClassification inserts a classification and its sharing rows.
func (r *Repository) CreateClassification(ctx context.Context, cl Classification) (*Classification, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO classifications (obj_id, author_id, label, probability, created_at)
			 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at`,
			cl.ObjID, cl.AuthorID, cl.Label, cl.Probability,
		).Scan(&cl.ID, &cl.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		return insertShares(ctx, tx, `INSERT INTO classification_groups (classification_id, group_id) VALUES ($1, $2)`, cl.ID, cl.GroupIDs)
	})
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// DeleteClassification removes a classification and its sharing rows.
func (r *Repository) DeleteClassification(ctx context.Context, id int64) error {
	return r.deleteWithShares(ctx, `DELETE FROM classification_groups WHERE classification_id = $1`, `DELETE FROM classifications WHERE id = $1`, id)
}

// ListFollowupRequestsForObj returns the obj's followup requests
// visible to the closure.
func (r *Repository) ListFollowupRequestsForObj(ctx context.Context, c *access.Closure, objID string) ([]FollowupRequest, error) {
	where, args, err := r.objFilter("followup_request", "followup_requests", c)
	if err != nil {
		return nil, err
	}
	sql := `SELECT followup_requests.id, followup_requests.obj_id, followup_requests.requester_id, followup_requests.instrument,
	        followup_requests.priority, followup_requests.status, followup_requests.created_at,
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM followup_request_groups WHERE followup_request_id = followup_requests.id), '{}')
	        FROM followup_requests WHERE ` + where + ` ORDER BY followup_requests.created_at`
	rows, err := r.pool.Query(ctx, sql, append(args, objID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FollowupRequest
	for rows.Next() {
		var f FollowupRequest
		if err := rows.Scan(&f.ID, &f.ObjID, &f.RequesterID, &f.Instrument, &f.Priority, &f.Status, &f.CreatedAt, &f.GroupIDs); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// CreateFollowupRequest inserts a request and its sharing rows.
func (r *Repository) CreateFollowupRequest(ctx context.Context, f FollowupRequest) (*FollowupRequest, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO followup_requests (obj_id, requester_id, instrument, priority, status, created_at)
			 VALUES ($1, $2, $3, $4, 'pending', NOW()) RETURNING id, status, created_at`,
			f.ObjID, f.RequesterID, f.Instrument, f.Priority,
		).Scan(&f.ID, &f.Status, &f.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		return insertShares(ctx, tx, `INSERT INTO followup_request_groups (followup_request_id, group_id) VALUES ($1, $2)`, f.ID, f.GroupIDs)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateFollowupStatus changes a request's status.
func (r *Repository) UpdateFollowupStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE followup_requests SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) deleteWithShares(ctx context.Context, deleteShares, deleteRow string, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteShares, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deleteRow, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func insertShares(ctx context.Context, tx pgx.Tx, sql string, id int64, groupIDs []int64) error {
	for _, groupID := range groupIDs {
		if _, err := tx.Exec(ctx, sql, id, groupID); err != nil {
			return mapPGError(err)
		}
	}
	return nil
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
