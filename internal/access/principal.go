// Package access implements row-level permission resolution for every
// persisted entity in the portal. A principal (interactive user or API
// token) is resolved once per request into a Closure of effective ACLs
// and accessible groups; per-entity policies are then evaluated against
// that closure, either in memory for already-loaded rows or as SQL
// clauses composed into bulk queries.
package access

import (
	"errors"
	"fmt"
)

// AdminACL grants access to every group and write access to any
// owner-protected entity, regardless of membership or ownership.
const AdminACL = "System admin"

var (
	// ErrInvalidPrincipal indicates the principal argument is neither a
	// recognized User nor Token.
	ErrInvalidPrincipal = errors.New("access: invalid principal")
	// ErrAccessDenied is the uniform denial for entities that do not
	// exist or are not accessible under the requested mode. The two
	// cases are intentionally indistinguishable to the caller.
	ErrAccessDenied = errors.New("access: insufficient permissions or record not found")
)

// Mode selects which of an entity type's policies applies.
type Mode int

const (
	// ModeRead governs visibility.
	ModeRead Mode = iota
	// ModeWrite governs mutation. Write access never implies read
	// access and vice versa.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Principal identifies the actor whose access rights are being
// evaluated. The two implementations are UserRef and TokenRef; any
// other value fails resolution with ErrInvalidPrincipal.
type Principal interface {
	cacheKey() string
}

// UserRef identifies an interactive user account.
type UserRef struct {
	UserID int64
}

func (u UserRef) cacheKey() string { return fmt.Sprintf("user:%d", u.UserID) }

// TokenRef identifies an API token. A token's effective rights never
// exceed its creator's: its ACL scope is intersected with the creator's
// effective ACLs and its group scope was validated as a subset of the
// creator's memberships at creation time.
type TokenRef struct {
	TokenID string
}

func (t TokenRef) cacheKey() string { return "token:" + t.TokenID }
