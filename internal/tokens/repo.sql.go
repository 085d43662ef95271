package tokens

import (
	"context"
	"errors"

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

// ListAccessible returns the tokens visible to the closure.
func (r *Repository) ListAccessible(ctx context.Context, c *access.Closure) ([]Token, error) {
	clause, err := r.engine.Filter("token", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	sql := `SELECT tokens.id, tokens.name, tokens.created_by, tokens.created_at,
	        COALESCE((SELECT ARRAY_AGG(acl_id ORDER BY acl_id) FROM token_acls WHERE token_id = tokens.id), '{}'),
	        COALESCE((SELECT ARRAY_AGG(group_id ORDER BY group_id) FROM token_groups WHERE token_id = tokens.id), '{}')
	        FROM tokens WHERE ` + clause.Rebind(1) + ` ORDER BY tokens.created_at`
	rows, err := r.pool.Query(ctx, sql, clause.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt, &t.ACLs, &t.Groups); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Create inserts the token together with its scope rows.
func (r *Repository) Create(ctx context.Context, t Token) (*Token, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO tokens (id, name, created_by, created_at)
			 VALUES ($1, $2, $3, NOW()) RETURNING created_at`,
			t.ID, t.Name, t.CreatedBy,
		).Scan(&t.CreatedAt)
		if err != nil {
			return mapPGError(err)
		}
		for _, acl := range t.ACLs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO token_acls (token_id, acl_id) VALUES ($1, $2)`, t.ID, acl); err != nil {
				return mapPGError(err)
			}
		}
		for _, groupID := range t.Groups {
			if _, err := tx.Exec(ctx,
				`INSERT INTO token_groups (token_id, group_id) VALUES ($1, $2)`, t.ID, groupID); err != nil {
				return mapPGError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a token and its scope rows.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM token_acls WHERE token_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM token_groups WHERE token_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
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
