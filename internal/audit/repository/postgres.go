package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"identity-core/internal/audit/domain"
)

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, auth_id, action, resource, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.AuthID, a.Action, a.Resource, a.Metadata, a.CreatedAt)
	return err
}

func (r *PostgresRepository) ListByAuthID(ctx context.Context, authID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, auth_id, action, resource, metadata, created_at
		 FROM audit_logs WHERE auth_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		authID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.AuthID, &a.Action, &a.Resource, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}
