package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorisation role carried by an authenticated caller.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleGuest   Role = "guest"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RolePremium, RoleGuest:
		return true
	}
	return false
}

// User is the subset of account data the order subsystem reads.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is attached to orders when the owner is requested.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// Identity is the authenticated caller of a request.
// Service-to-service callers authenticated by API key carry the admin role and a nil UserID.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the caller has administrative rights.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Actor returns the user id to record in audit fields, or nil for service callers.
func (i Identity) Actor() *uuid.UUID {
	if i.UserID == uuid.Nil {
		return nil
	}
	id := i.UserID
	return &id
}
