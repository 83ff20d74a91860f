package domain

import "time"

// Role is the coarse permission level of a principal.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User models a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated caller of a request. It is resolved from the
// bearer token before any core operation runs and never changes afterwards.
type Identity struct {
	ID   int64
	Role Role
}

// Authenticated reports whether the identity carries a usable id and role.
func (i Identity) Authenticated() bool {
	return i.ID > 0 && i.Role.Valid()
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
