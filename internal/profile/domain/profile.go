// Package domain holds the Profile aggregate: user-facing personal data,
// eventually consistent with its AuthIdentity.
package domain

import (
	"time"

	"github.com/google/uuid"

	"identity-core/internal/apperr"
)

// Profile is personal data linked one-to-one to an AuthIdentity. Created
// asynchronously by the registration saga; reachable only after the creation
// event is processed.
type Profile struct {
	ID        string
	AuthID    string
	Name      string
	Lastname  string
	Age       int
	CreatedAt time.Time
	UpdatedAt time.Time
}

const maxNameLength = 100

// NewProfileID returns a new opaque profile id with the profile- prefix.
func NewProfileID() string {
	return "profile-" + uuid.New().String()
}

// Validate checks profile fields for persistence.
func (p *Profile) Validate() error {
	if p.AuthID == "" {
		return apperr.New(apperr.KindValidation, "auth_id_required", "profile must reference an auth identity")
	}
	if len(p.Name) > maxNameLength || len(p.Lastname) > maxNameLength {
		return apperr.New(apperr.KindValidation, "name_too_long", "name and lastname must be at most 100 characters")
	}
	if p.Age < 0 || p.Age > 150 {
		return apperr.New(apperr.KindValidation, "invalid_age", "age must be between 0 and 150")
	}
	return nil
}

// CanUpdate reports whether requester may update the profile: either the
// profile belongs to the requester or the requester is an admin.
func CanUpdate(profile *Profile, requesterAuthID string, requesterIsAdmin bool) error {
	if profile.AuthID == requesterAuthID || requesterIsAdmin {
		return nil
	}
	return apperr.New(apperr.KindUnauthorized, "update_forbidden", "only the profile owner or an admin may update this profile")
}
