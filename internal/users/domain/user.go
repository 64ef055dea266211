package domain

import (
	"slices"
	"time"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	FullName     string
	PasswordHash string // argon2id PHC string, or a legacy bcrypt hash
	Enabled      bool
	Roles        []string // role names, sorted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the authenticated view of u carried inside tokens.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Roles: slices.Clone(u.Roles)}
}

// HasRole reports whether u was granted role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
