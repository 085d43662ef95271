package groups

import (
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// Group is a sharing scope for catalog data. Single-user groups are
// owned by the user lifecycle and cannot be managed directly.
type Group struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SingleUserGroup bool      `json:"single_user_group"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Member is one user's membership in a group.
type Member struct {
	UserID int64 `json:"user_id"`
	Admin  bool  `json:"admin"`
}

// EntityType implements access.Entity.
func (g Group) EntityType() string { return "group" }

// EntityID implements access.Entity.
func (g Group) EntityID() any { return g.ID }

// RegisterTypes declares the group table's access policies: a group row
// is visible exactly to its members.
func RegisterTypes(reg *access.Registry) {
	reg.MustRegister(access.EntityType{
		Name:      "group",
		Table:     "groups",
		Prototype: Group{},
		Read:      access.SelfGroup(),
		Write:     access.SelfGroup(),
	})
}
