package repository

import (
	"context"

	"identity-core/internal/profile/domain"
)

// UpdateFields is a partial update of profile fields. Nil fields are left
// unchanged.
type UpdateFields struct {
	Name     *string
	Lastname *string
	Age      *int
}

// Repository defines persistence for profiles.
type Repository interface {
	Create(ctx context.Context, p *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error)
	Update(ctx context.Context, id string, fields UpdateFields) error
	Delete(ctx context.Context, id string) error
}
