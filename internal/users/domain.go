package users

import (
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// User is a portal account. Every user owns exactly one single-user
// group, created, renamed and deleted together with the account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	ContactEmail string    `json:"contact_email"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EntityType implements access.Entity.
func (u User) EntityType() string { return "user" }

// EntityID implements access.Entity.
func (u User) EntityID() any { return u.ID }

// AccessOwnerID makes a user row its own owner: only the user itself
// (or an admin) may modify it.
func (u User) AccessOwnerID() int64 { return u.ID }

// RegisterTypes declares the access policies for user rows. Profiles
// are readable by any authenticated principal; writes are self-only.
func RegisterTypes(reg *access.Registry) {
	reg.MustRegister(access.EntityType{
		Name:      "user",
		Table:     "users",
		Prototype: User{},
		Read:      access.Everyone(),
		Write:     access.ByOwner("id"),
	})
}
