package access

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgx query methods the engine needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so checks run inside the
// caller's transaction when one is open.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Engine dispatches accessibility decisions for registered entity
// types. It holds no per-request state; closures carry that.
type Engine struct {
	reg      *Registry
	observer func(entity string, mode Mode, allowed bool)
}

// NewEngine constructs an Engine over a finalized registry.
func NewEngine(reg *Registry) *Engine {
	return &Engine{reg: reg}
}

// SetObserver installs a hook invoked once per decision, used for
// metrics.
func (e *Engine) SetObserver(fn func(entity string, mode Mode, allowed bool)) {
	e.observer = fn
}

// Filter returns the SQL clause selecting rows of the named type that
// the closure may access under the mode. The system-admin override is
// appended as a leading OR branch so bulk queries stay single-query for
// admins too.
func (e *Engine) Filter(typeName string, c *Closure, mode Mode) (Clause, error) {
	t, err := e.reg.entry(typeName)
	if err != nil {
		return Clause{}, err
	}
	b := &clauseBuilder{reg: e.reg, closure: c}
	inner, err := b.build(t.policy(mode), t.Table, t.IDCol)
	if err != nil {
		return Clause{}, err
	}
	return Clause{
		SQL:  "(? OR " + inner.SQL + ")",
		Args: append([]any{c.IsAdmin()}, inner.Args...),
	}, nil
}

// IsAccessible reports whether the loaded entity is accessible to the
// closure under the mode. Pure policies are evaluated in memory;
// policies that traverse relations fall back to a single EXISTS query
// against the entity's id.
func (e *Engine) IsAccessible(ctx context.Context, q Querier, ent Entity, c *Closure, mode Mode) (bool, error) {
	t, err := e.reg.entry(ent.EntityType())
	if err != nil {
		return false, err
	}
	if allowed, decided := t.policy(mode).allows(ent, c); decided {
		result := c.IsAdmin() || allowed
		e.observe(t.Name, mode, result)
		return result, nil
	}
	allowed, err := e.existsAccessible(ctx, q, t, ent.EntityID(), c, mode)
	if err != nil {
		return false, err
	}
	e.observe(t.Name, mode, allowed)
	return allowed, nil
}

// Authorize loads nothing and leaks nothing: it reports ErrAccessDenied
// both when the row does not exist and when it is not accessible under
// the mode.
func (e *Engine) Authorize(ctx context.Context, q Querier, typeName string, id any, c *Closure, mode Mode) error {
	t, err := e.reg.entry(typeName)
	if err != nil {
		return err
	}
	allowed, err := e.existsAccessible(ctx, q, t, id, c, mode)
	if err != nil {
		return err
	}
	e.observe(t.Name, mode, allowed)
	if !allowed {
		return ErrAccessDenied
	}
	return nil
}

func (e *Engine) existsAccessible(ctx context.Context, q Querier, t EntityType, id any, c *Closure, mode Mode) (bool, error) {
	clause, err := e.Filter(t.Name, c, mode)
	if err != nil {
		return false, err
	}
	sql := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s.%s = $1 AND %s)",
		t.Table, t.Table, t.IDCol, clause.Rebind(2))
	args := append([]any{id}, clause.Args...)
	var exists bool
	if err := q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("access: %s %s check: %w", t.Name, mode, err)
	}
	return exists, nil
}

func (e *Engine) observe(entity string, mode Mode, allowed bool) {
	if e.observer != nil {
		e.observer(entity, mode, allowed)
	}
}

func (t EntityType) policy(mode Mode) Policy {
	if mode == ModeWrite {
		return t.Write
	}
	return t.Read
}
