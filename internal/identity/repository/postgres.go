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
	"identity-core/internal/identity/domain"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an auth identity repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new auth identity. The uniqueness constraints on email
// and provider ids serialize concurrent registrations; the loser receives a
// conflict error.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuthIdentity) error {
	query := `
		INSERT INTO auth_identities (id, email, password_hash, roles, google_id, apple_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`
	roles := rolesToStrings(a.Roles)
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Email, a.PasswordHash, roles, a.GoogleID, a.AppleID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Wrap(apperr.KindConflict, "identity_exists", "email or provider id is already registered", err)
		}
		return fmt.Errorf("inserting auth identity: %w", err)
	}
	return nil
}

// GetByID returns the non-deleted identity for id, or nil if absent.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string, includeSecrets bool) (*domain.AuthIdentity, error) {
	query := selectColumns(includeSecrets) + ` WHERE id = $1 AND deleted_at IS NULL`
	return r.scanOne(ctx, query, includeSecrets, id)
}

// GetByEmail returns the non-deleted identity for email (case-insensitive),
// or nil if absent.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string, includeSecrets bool) (*domain.AuthIdentity, error) {
	query := selectColumns(includeSecrets) + ` WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	return r.scanOne(ctx, query, includeSecrets, email)
}

// GetByGoogleID returns the non-deleted identity linked to the Google
// subject, or nil if absent.
func (r *PostgresRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.AuthIdentity, error) {
	query := selectColumns(false) + ` WHERE google_id = $1 AND deleted_at IS NULL`
	return r.scanOne(ctx, query, false, googleID)
}

// GetByAppleID returns the non-deleted identity linked to the Apple subject,
// or nil if absent.
func (r *PostgresRepository) GetByAppleID(ctx context.Context, appleID string) (*domain.AuthIdentity, error) {
	query := selectColumns(false) + ` WHERE apple_id = $1 AND deleted_at IS NULL`
	return r.scanOne(ctx, query, false, appleID)
}

// Update applies the non-nil fields to the identity with the given id.
func (r *PostgresRepository) Update(ctx context.Context, id string, fields UpdateFields) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	argIdx := 2
	if fields.GoogleID != nil {
		sets = append(sets, fmt.Sprintf("google_id = $%d", argIdx))
		args = append(args, *fields.GoogleID)
		argIdx++
	}
	if fields.AppleID != nil {
		sets = append(sets, fmt.Sprintf("apple_id = $%d", argIdx))
		args = append(args, *fields.AppleID)
		argIdx++
	}
	if fields.LastLoginAt != nil {
		sets = append(sets, fmt.Sprintf("last_login_at = $%d", argIdx))
		args = append(args, *fields.LastLoginAt)
		argIdx++
	}
	query := fmt.Sprintf(`UPDATE auth_identities SET %s WHERE id = $1 AND deleted_at IS NULL`, strings.Join(sets, ", "))
	_, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Wrap(apperr.KindConflict, "provider_id_taken", "provider id is already linked to another account", err)
		}
		return fmt.Errorf("updating auth identity: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the password hash for the identity.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_identities SET password_hash = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, passwordHash)
	return err
}

// UpdateRefreshTokenHash overwrites the refresh-token rotation hash.
func (r *PostgresRepository) UpdateRefreshTokenHash(ctx context.Context, id, hash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_identities SET refresh_token_hash = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, hash)
	return err
}

// ClearRefreshToken removes the stored rotation hash. Idempotent.
func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_identities SET refresh_token_hash = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id)
	return err
}

// SoftDelete marks the identity as deleted, removing it from all lookups.
// The partial unique indexes free the email and provider ids for re-use.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_identities SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id)
	return err
}

func selectColumns(includeSecrets bool) string {
	if includeSecrets {
		return `
		SELECT id, email, password_hash, roles, COALESCE(google_id, ''), COALESCE(apple_id, ''),
		       COALESCE(refresh_token_hash, ''), last_login_at, deleted_at, created_at, updated_at
		FROM auth_identities`
	}
	return `
		SELECT id, email, '', roles, COALESCE(google_id, ''), COALESCE(apple_id, ''),
		       '', last_login_at, deleted_at, created_at, updated_at
		FROM auth_identities`
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, includeSecrets bool, args ...any) (*domain.AuthIdentity, error) {
	var (
		a     domain.AuthIdentity
		roles []string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &roles, &a.GoogleID, &a.AppleID,
		&a.RefreshTokenHash, &a.LastLoginAt, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying auth identity: %w", err)
	}
	a.Roles = stringsToRoles(roles)
	return &a, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(roles []string) []domain.Role {
	out := make([]domain.Role, len(roles))
	for i, r := range roles {
		out[i] = domain.Role(r)
	}
	return out
}
