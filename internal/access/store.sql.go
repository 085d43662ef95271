package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLStore implements Store against PostgreSQL.
type SQLStore struct {
	pool *pgxpool.Pool
}

// NewSQLStore constructs a Store backed by the provided pool.
func NewSQLStore(pool *pgxpool.Pool) *SQLStore {
	return &SQLStore{pool: pool}
}

// UserACLs returns role-derived and directly granted ACL ids, deduplicated.
func (s *SQLStore) UserACLs(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT acl_id FROM user_acls WHERE user_id = $1
		UNION
		SELECT ra.acl_id
		FROM role_acls ra
		JOIN user_roles ur ON ur.role_id = ra.role_id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var acls []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		acls = append(acls, id)
	}
	return acls, rows.Err()
}

// UserGroups returns the user's direct group memberships.
func (s *SQLStore) UserGroups(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT group_id FROM group_users WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInt64s(rows)
}

// TokenScope returns the token's frozen creator/group/ACL scope.
func (s *SQLStore) TokenScope(ctx context.Context, tokenID string) (TokenScope, error) {
	var scope TokenScope
	err := s.pool.QueryRow(ctx, `SELECT created_by FROM tokens WHERE id = $1`, tokenID).Scan(&scope.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenScope{}, fmt.Errorf("%w: unknown token", ErrInvalidPrincipal)
		}
		return TokenScope{}, err
	}

	groupRows, err := s.pool.Query(ctx, `SELECT group_id FROM token_groups WHERE token_id = $1`, tokenID)
	if err != nil {
		return TokenScope{}, err
	}
	defer groupRows.Close()
	if scope.GroupIDs, err = scanInt64s(groupRows); err != nil {
		return TokenScope{}, err
	}

	aclRows, err := s.pool.Query(ctx, `SELECT acl_id FROM token_acls WHERE token_id = $1`, tokenID)
	if err != nil {
		return TokenScope{}, err
	}
	defer aclRows.Close()
	for aclRows.Next() {
		var id string
		if err := aclRows.Scan(&id); err != nil {
			return TokenScope{}, err
		}
		scope.ACLIDs = append(scope.ACLIDs, id)
	}
	return scope, aclRows.Err()
}

// AllGroupIDs returns every group id in the system.
func (s *SQLStore) AllGroupIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM groups`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInt64s(rows)
}

func scanInt64s(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Store = (*SQLStore)(nil)
