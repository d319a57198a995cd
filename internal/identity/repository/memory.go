package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"identity-core/internal/apperr"
	"identity-core/internal/identity/domain"
)

// Memory is an in-memory Repository. It enforces the same uniqueness rules
// as the Postgres implementation and backs tests and single-process runs.
type Memory struct {
	mu         sync.Mutex
	identities map[string]*domain.AuthIdentity
}

func NewMemory() *Memory {
	return &Memory{identities: make(map[string]*domain.AuthIdentity)}
}

func (m *Memory) Create(ctx context.Context, a *domain.AuthIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[a.ID]; ok {
		return apperr.New(apperr.KindConflict, "identity_exists", "an identity with this email already exists")
	}
	for _, existing := range m.identities {
		if existing.DeletedAt != nil {
			continue
		}
		if strings.EqualFold(existing.Email, a.Email) {
			return apperr.New(apperr.KindConflict, "identity_exists", "an identity with this email already exists")
		}
		if a.GoogleID != "" && existing.GoogleID == a.GoogleID {
			return apperr.New(apperr.KindConflict, "identity_exists", "an identity with this email already exists")
		}
		if a.AppleID != "" && existing.AppleID == a.AppleID {
			return apperr.New(apperr.KindConflict, "identity_exists", "an identity with this email already exists")
		}
	}
	cp := *a
	m.identities[a.ID] = &cp
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id string, includeSecrets bool) (*domain.AuthIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return nil, nil
	}
	return redact(a, includeSecrets), nil
}

func (m *Memory) GetByEmail(ctx context.Context, email string, includeSecrets bool) (*domain.AuthIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.identities {
		if a.DeletedAt == nil && strings.EqualFold(a.Email, email) {
			return redact(a, includeSecrets), nil
		}
	}
	return nil, nil
}

func (m *Memory) GetByGoogleID(ctx context.Context, googleID string) (*domain.AuthIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.identities {
		if a.DeletedAt == nil && a.GoogleID != "" && a.GoogleID == googleID {
			return redact(a, false), nil
		}
	}
	return nil, nil
}

func (m *Memory) GetByAppleID(ctx context.Context, appleID string) (*domain.AuthIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.identities {
		if a.DeletedAt == nil && a.AppleID != "" && a.AppleID == appleID {
			return redact(a, false), nil
		}
	}
	return nil, nil
}

func (m *Memory) Update(ctx context.Context, id string, fields UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return apperr.New(apperr.KindNotFound, "identity_not_found", "auth identity not found")
	}
	if fields.GoogleID != nil {
		for _, other := range m.identities {
			if other.ID != id && other.DeletedAt == nil && other.GoogleID == *fields.GoogleID {
				return apperr.New(apperr.KindConflict, "provider_id_taken", "this provider account is already linked")
			}
		}
		a.GoogleID = *fields.GoogleID
	}
	if fields.AppleID != nil {
		for _, other := range m.identities {
			if other.ID != id && other.DeletedAt == nil && other.AppleID == *fields.AppleID {
				return apperr.New(apperr.KindConflict, "provider_id_taken", "this provider account is already linked")
			}
		}
		a.AppleID = *fields.AppleID
	}
	if fields.LastLoginAt != nil {
		t := *fields.LastLoginAt
		a.LastLoginAt = &t
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return apperr.New(apperr.KindNotFound, "identity_not_found", "auth identity not found")
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) UpdateRefreshTokenHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return apperr.New(apperr.KindNotFound, "identity_not_found", "auth identity not found")
	}
	a.RefreshTokenHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ClearRefreshToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return nil
	}
	a.RefreshTokenHash = ""
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.identities[id]
	if !ok || a.DeletedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	a.DeletedAt = &now
	a.UpdatedAt = now
	return nil
}

func redact(a *domain.AuthIdentity, includeSecrets bool) *domain.AuthIdentity {
	cp := *a
	if !includeSecrets {
		cp.PasswordHash = ""
		cp.RefreshTokenHash = ""
	}
	return &cp
}
