package repository

import (
	"context"

	"identity-core/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByAuthID(ctx context.Context, authID string, limit, offset int32) ([]*domain.AuditLog, error)
}
