package auth

import "time"

// Account represents a user account as seen by the login flow.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
