package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded audit event.
type Entry struct {
	ID         int64           `json:"id"`
	ActorID    *int64          `json:"actor_id"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Query narrows an audit listing.
type Query struct {
	Entity  string
	ActorID int64
	Limit   int
}

// Repository reads audit events from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the newest matching events.
func (r *Repository) List(ctx context.Context, q Query) ([]Entry, error) {
	sql := `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM audit_logs`
	var args []any
	where := ""
	if q.Entity != "" {
		args = append(args, q.Entity)
		where = ` WHERE entity = $` + strconv.Itoa(len(args))
	}
	if q.ActorID > 0 {
		args = append(args, q.ActorID)
		if where == "" {
			where = ` WHERE actor_id = $` + strconv.Itoa(len(args))
		} else {
			where += ` AND actor_id = $` + strconv.Itoa(len(args))
		}
	}
	limit := q.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	sql += where + ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
