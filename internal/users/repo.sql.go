package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurora-portal/aurora/internal/platform/db"
	"github.com/aurora-portal/aurora/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Mutations that
// touch the single-user group run in one transaction with the user row,
// so the one-group-per-user invariant holds at every commit point.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, first_name, last_name, contact_email, is_active, created_at, updated_at`

// List returns one page of users ordered by id.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ContactEmail, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the total number of users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// GetByID fetches one user.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ContactEmail, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts the user together with its single-user group and the
// membership row linking them.
func (r *Repository) Create(ctx context.Context, u User, passwordHash string) (*User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (username, password_hash, first_name, last_name, contact_email, is_active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
			 RETURNING id, is_active, created_at, updated_at`,
			u.Username, passwordHash, u.FirstName, u.LastName, u.ContactEmail,
		).Scan(&u.ID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return mapPGError(err)
		}

		var groupID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO groups (name, single_user_group, created_at, updated_at)
			 VALUES ($1, TRUE, NOW(), NOW()) RETURNING id`,
			u.Username,
		).Scan(&groupID)
		if err != nil {
			return mapPGError(err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO group_users (group_id, user_id, admin) VALUES ($1, $2, TRUE)`,
			groupID, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Rename changes the username and renames the single-user group in the
// same transaction.
func (r *Repository) Rename(ctx context.Context, id int64, username string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET username = $1, updated_at = NOW() WHERE id = $2`,
			username, id)
		if err != nil {
			return mapPGError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx,
			`UPDATE groups SET name = $1, updated_at = NOW()
			 WHERE single_user_group
			   AND id = (SELECT group_id FROM group_users gu
			             JOIN groups g ON g.id = gu.group_id
			             WHERE gu.user_id = $2 AND g.single_user_group)`,
			username, id)
		return mapPGError(err)
	})
}

// Delete removes the user, its memberships and its single-user group.
// Other groups the user belonged to are left untouched.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var groupID int64
		hasGroup := true
		err := tx.QueryRow(ctx,
			`SELECT g.id FROM groups g
			 JOIN group_users gu ON gu.group_id = g.id
			 WHERE gu.user_id = $1 AND g.single_user_group`,
			id,
		).Scan(&groupID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			hasGroup = false
		}

		if _, err := tx.Exec(ctx, `DELETE FROM group_users WHERE user_id = $1`, id); err != nil {
			return err
		}
		if hasGroup {
			if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_acls WHERE user_id = $1`, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// SingleUserGroupID returns the id of the user's single-user group.
func (r *Repository) SingleUserGroupID(ctx context.Context, userID int64) (int64, error) {
	var groupID int64
	err := r.pool.QueryRow(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_users gu ON gu.group_id = g.id
		 WHERE gu.user_id = $1 AND g.single_user_group`,
		userID,
	).Scan(&groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return groupID, nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
