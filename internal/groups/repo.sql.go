package groups

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

const groupColumns = `id, name, single_user_group, created_at, updated_at`

// ListAccessible returns the groups visible to the closure, one query
// regardless of admin status.
func (r *Repository) ListAccessible(ctx context.Context, c *access.Closure) ([]Group, error) {
	clause, err := r.engine.Filter("group", c, access.ModeRead)
	if err != nil {
		return nil, err
	}
	sql := `SELECT ` + groupColumns + ` FROM groups WHERE ` + clause.Rebind(1) + ` ORDER BY id`
	rows, err := r.pool.Query(ctx, sql, clause.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.SingleUserGroup, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetByID fetches one group without an access check; callers authorize
// first.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.SingleUserGroup, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Create inserts a group and makes the creator its first admin member.
func (r *Repository) Create(ctx context.Context, name string, creatorID int64) (*Group, error) {
	var g Group
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO groups (name, single_user_group, created_at, updated_at)
			 VALUES ($1, FALSE, NOW(), NOW())
			 RETURNING `+groupColumns,
			name,
		).Scan(&g.ID, &g.Name, &g.SingleUserGroup, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return mapPGError(err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO group_users (group_id, user_id, admin) VALUES ($1, $2, TRUE)`,
			g.ID, creatorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Rename updates a group's name.
func (r *Repository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE groups SET name = $1, updated_at = NOW() WHERE id = $2 AND NOT single_user_group`,
		name, id)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a group and its memberships. Single-user groups are
// excluded; they go away with their user.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM group_users WHERE group_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1 AND NOT single_user_group`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Members lists a group's memberships.
func (r *Repository) Members(ctx context.Context, groupID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, admin FROM group_users WHERE group_id = $1 ORDER BY user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Admin); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsGroupAdmin reports whether the user holds the admin flag on the
// membership.
func (r *Repository) IsGroupAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	var admin bool
	err := r.pool.QueryRow(ctx,
		`SELECT admin FROM group_users WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return admin, nil
}

// AddMember inserts or updates a membership row.
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64, admin bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_users (group_id, user_id, admin) VALUES ($1, $2, $3)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET admin = EXCLUDED.admin`,
		groupID, userID, admin)
	return mapPGError(err)
}

// RemoveMember deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_users WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
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
