package repository

import (
	"context"
	"time"

	"identity-core/internal/identity/domain"
)

// UpdateFields is a partial update of mutable auth identity fields. Nil
// fields are left unchanged.
type UpdateFields struct {
	GoogleID    *string
	AppleID     *string
	LastLoginAt *time.Time
}

// Repository defines persistence for auth identities. Soft-deleted rows are
// excluded from every lookup. Secrets (password hash, refresh token hash)
// are returned only when includeSecrets is set.
type Repository interface {
	Create(ctx context.Context, a *domain.AuthIdentity) error
	GetByID(ctx context.Context, id string, includeSecrets bool) (*domain.AuthIdentity, error)
	GetByEmail(ctx context.Context, email string, includeSecrets bool) (*domain.AuthIdentity, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.AuthIdentity, error)
	GetByAppleID(ctx context.Context, appleID string) (*domain.AuthIdentity, error)
	Update(ctx context.Context, id string, fields UpdateFields) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateRefreshTokenHash(ctx context.Context, id, hash string) error
	ClearRefreshToken(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}
