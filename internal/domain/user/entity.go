package user

import (
	"strings"
	"time"
)

// Role is the authorization attribute carried in a user's token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// DefaultRole is assigned when registration does not name one.
const DefaultRole = RoleUser

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleManager, RoleUser}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalises s and returns the matching role. An empty string
// yields DefaultRole.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRole, true
	}
	r := Role(s)
	return r, r.Valid()
}

// User represents a registered member of the university directory.
type User struct {
	ID           string // ULID
	Name         string
	Email        string // normalised, unique
	PasswordHash string // bcrypt; never leaves the service
	Role         Role
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail trims and lowercases an address so lookups and the unique
// index compare addresses case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
