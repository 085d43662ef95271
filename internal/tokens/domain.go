package tokens

import (
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// Token is an API credential with a scope narrowed from its creator's
// permissions at creation time. The scope never widens afterwards.
type Token struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	ACLs      []string  `json:"acls"`
	Groups    []int64   `json:"groups"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (t Token) EntityType() string { return "token" }

// EntityID implements access.Entity.
func (t Token) EntityID() any { return t.ID }

// AccessOwnerID scopes token rows to their creator.
func (t Token) AccessOwnerID() int64 { return t.CreatedBy }

// RegisterTypes declares the token table's access policies: tokens are
// visible and manageable only by their creator.
func RegisterTypes(reg *access.Registry) {
	reg.MustRegister(access.EntityType{
		Name:      "token",
		Table:     "tokens",
		Prototype: Token{},
		Read:      access.ByOwner("created_by"),
		Write:     access.ByOwner("created_by"),
	})
}
