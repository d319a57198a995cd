package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-core/internal/apperr"
	"identity-core/internal/profile/domain"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a profile repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new profile. The unique constraint on auth_id enforces
// one profile per auth identity.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, auth_id, name, lastname, age, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.AuthID, p.Name, p.Lastname, p.Age, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Wrap(apperr.KindConflict, "profile_exists", "profile already exists for this auth identity", err)
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// GetByID returns the profile for id, or nil if absent.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.scanOne(ctx,
		`SELECT id, auth_id, name, lastname, age, created_at, updated_at FROM profiles WHERE id = $1`, id)
}

// GetByAuthID returns the profile linked to the auth identity, or nil if absent.
func (r *PostgresRepository) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	return r.scanOne(ctx,
		`SELECT id, auth_id, name, lastname, age, created_at, updated_at FROM profiles WHERE auth_id = $1`, authID)
}

// Update applies the non-nil fields to the profile with the given id.
func (r *PostgresRepository) Update(ctx context.Context, id string, fields UpdateFields) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	argIdx := 2
	if fields.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *fields.Name)
		argIdx++
	}
	if fields.Lastname != nil {
		sets = append(sets, fmt.Sprintf("lastname = $%d", argIdx))
		args = append(args, *fields.Lastname)
		argIdx++
	}
	if fields.Age != nil {
		sets = append(sets, fmt.Sprintf("age = $%d", argIdx))
		args = append(args, *fields.Age)
		argIdx++
	}
	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $1`, strings.Join(sets, ", "))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// Delete removes the profile with the given id. Idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Profile, error) {
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.AuthID, &p.Name, &p.Lastname, &p.Age, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}
