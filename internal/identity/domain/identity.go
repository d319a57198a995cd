package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthIdentity is the credential-bearing aggregate: email/password, linked
// OAuth provider subjects, roles, and the current refresh-token rotation hash.
type AuthIdentity struct {
	ID           string
	Email        string
	PasswordHash string // empty for OAuth-only identities; excluded from lookups unless requested
	Roles        []Role
	GoogleID     string // provider subject; at most one identity per subject
	AppleID      string
	// RefreshTokenHash is the SHA-256 hash of the current refresh token.
	// Set on login/registration/refresh, cleared on logout and password change.
	RefreshTokenHash string
	LastLoginAt      *time.Time
	DeletedAt        *time.Time // soft-delete marker; deleted identities are excluded from lookups
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Role is an authorization role held by an identity.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// HasRole reports whether the identity holds the given role.
func (a *AuthIdentity) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity holds the ADMIN role.
func (a *AuthIdentity) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// NewAuthID returns a new opaque auth identity id with the auth- prefix.
func NewAuthID() string {
	return "auth-" + uuid.New().String()
}
