package model

import "time"

// Role determines which actions an account may perform
type Role string

const (
	RoleDeveloper Role = "developer" // Publishes and maintains games
	RolePlayer    Role = "player"    // Downloads games and plays in rooms
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleDeveloper || r == RolePlayer
}

// Account is a registered user. Name is unique and immutable.
type Account struct {
	Name         string
	PasswordHash string // bcrypt hash
	Role         Role
	CreatedAt    time.Time
}
