package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurora-portal/aurora/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with their ACL bundles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, COALESCE(ARRAY_AGG(ra.acl_id ORDER BY ra.acl_id) FILTER (WHERE ra.acl_id IS NOT NULL), '{}')
		 FROM roles r
		 LEFT JOIN role_acls ra ON ra.role_id = r.id
		 GROUP BY r.id ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.ACLs); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListACLs returns every declared ACL.
func (r *Repository) ListACLs(ctx context.Context) ([]ACL, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM acls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var acls []ACL
	for rows.Next() {
		var a ACL
		if err := rows.Scan(&a.ID); err != nil {
			return nil, err
		}
		acls = append(acls, a)
	}
	return acls, rows.Err()
}

// UserRoles returns the ids of roles granted to the user.
func (r *Repository) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
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

// GrantRole assigns a role to a user.
func (r *Repository) GrantRole(ctx context.Context, userID int64, roleID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	return mapPGError(err)
}

// RevokeRole removes a role grant.
func (r *Repository) RevokeRole(ctx context.Context, userID int64, roleID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GrantACL assigns a direct ACL to a user, outside any role.
func (r *Repository) GrantACL(ctx context.Context, userID int64, aclID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_acls (user_id, acl_id) VALUES ($1, $2)`, userID, aclID)
	return mapPGError(err)
}

// RevokeACL removes a direct ACL grant. Role-derived grants are not
// affected.
func (r *Repository) RevokeACL(ctx context.Context, userID int64, aclID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_acls WHERE user_id = $1 AND acl_id = $2`, userID, aclID)
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
