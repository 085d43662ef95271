package access

import (
	"context"
	"fmt"
	"sort"
)

// Closure is the transaction-scoped resolved view of a principal: its
// effective ACL set and the set of groups it can act in. Closures are
// computed lazily, memoized for the remainder of the request, and
// discarded with it; they are never persisted or shared across
// requests, since membership changes must be visible on the next
// request.
type Closure struct {
	acls    map[string]struct{}
	groups  map[int64]struct{}
	admin   bool
	ownerID int64
	tokenID string
}

// HasACL reports whether the closure holds the named ACL.
func (c *Closure) HasACL(id string) bool {
	_, ok := c.acls[id]
	return ok
}

// IsAdmin reports whether the closure holds the system admin ACL.
func (c *Closure) IsAdmin() bool { return c.admin }

// InGroup reports whether the group is accessible to the principal.
func (c *Closure) InGroup(id int64) bool {
	_, ok := c.groups[id]
	return ok
}

// GroupIDs returns the accessible group ids in ascending order, for use
// as a SQL array argument.
func (c *Closure) GroupIDs() []int64 {
	ids := make([]int64, 0, len(c.groups))
	for id := range c.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ACLIDs returns the effective ACL ids in lexical order.
func (c *Closure) ACLIDs() []string {
	ids := make([]string, 0, len(c.acls))
	for id := range c.acls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OwnerUserID returns the user identity used for ownership checks: the
// user itself, or the creator for a token principal.
func (c *Closure) OwnerUserID() int64 { return c.ownerID }

// TokenID returns the token id when the principal is a token, else "".
func (c *Closure) TokenID() string { return c.tokenID }

// TokenScope is the declared scope of an API token as stored at
// creation time.
type TokenScope struct {
	CreatedBy int64
	GroupIDs  []int64
	ACLIDs    []string
}

// Store supplies the raw membership and grant rows the resolver folds
// into closures.
type Store interface {
	// UserACLs returns the union of role-derived and directly granted
	// ACL ids for the user.
	UserACLs(ctx context.Context, userID int64) ([]string, error)
	// UserGroups returns the ids of groups the user belongs to.
	UserGroups(ctx context.Context, userID int64) ([]int64, error)
	// TokenScope returns the stored scope of a token, or ErrInvalidPrincipal
	// if no such token exists.
	TokenScope(ctx context.Context, tokenID string) (TokenScope, error)
	// AllGroupIDs returns every group id, for admin expansion.
	AllGroupIDs(ctx context.Context) ([]int64, error)
}

// Resolver computes closures for principals. A Resolver is created per
// request and memoizes each principal's closure for the lifetime of
// that request.
type Resolver struct {
	store Store
	memo  map[string]*Closure
}

// NewResolver constructs a request-scoped Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, memo: make(map[string]*Closure)}
}

// Closure resolves the principal's effective ACLs and groups. Repeated
// calls for the same principal within one request return the memoized
// result without re-querying.
func (r *Resolver) Closure(ctx context.Context, p Principal) (*Closure, error) {
	if p == nil {
		return nil, ErrInvalidPrincipal
	}
	if c, ok := r.memo[p.cacheKey()]; ok {
		return c, nil
	}
	c, err := r.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	r.memo[p.cacheKey()] = c
	return c, nil
}

func (r *Resolver) resolve(ctx context.Context, p Principal) (*Closure, error) {
	switch ref := p.(type) {
	case UserRef:
		return r.resolveUser(ctx, ref)
	case TokenRef:
		return r.resolveToken(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidPrincipal, p)
	}
}

func (r *Resolver) resolveUser(ctx context.Context, ref UserRef) (*Closure, error) {
	acls, err := r.store.UserACLs(ctx, ref.UserID)
	if err != nil {
		return nil, fmt.Errorf("access: resolve user acls: %w", err)
	}
	c := &Closure{acls: stringSet(acls), ownerID: ref.UserID}
	c.admin = c.HasACL(AdminACL)

	var groups []int64
	if c.admin {
		groups, err = r.store.AllGroupIDs(ctx)
	} else {
		groups, err = r.store.UserGroups(ctx, ref.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("access: resolve user groups: %w", err)
	}
	c.groups = int64Set(groups)
	return c, nil
}

func (r *Resolver) resolveToken(ctx context.Context, ref TokenRef) (*Closure, error) {
	scope, err := r.store.TokenScope(ctx, ref.TokenID)
	if err != nil {
		return nil, err
	}
	creatorACLs, err := r.store.UserACLs(ctx, scope.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("access: resolve token creator acls: %w", err)
	}

	// A token holds only the ACLs that both its declared scope and its
	// creator currently grant.
	creator := stringSet(creatorACLs)
	c := &Closure{acls: make(map[string]struct{}, len(scope.ACLIDs)), ownerID: scope.CreatedBy, tokenID: ref.TokenID}
	for _, id := range scope.ACLIDs {
		if _, ok := creator[id]; ok {
			c.acls[id] = struct{}{}
		}
	}
	c.admin = c.HasACL(AdminACL)

	if c.admin {
		all, err := r.store.AllGroupIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("access: resolve token groups: %w", err)
		}
		c.groups = int64Set(all)
		return c, nil
	}
	// Group scope was frozen at creation time; the creator's current
	// memberships are deliberately not consulted, so a token never
	// widens when its creator joins new groups.
	c.groups = int64Set(scope.GroupIDs)
	return c, nil
}

func stringSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func int64Set(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
