package repository

import (
	"context"
	"sync"
	"time"

	"identity-core/internal/apperr"
	"identity-core/internal/profile/domain"
)

// Memory is an in-memory Repository with the same uniqueness rules as the
// Postgres implementation. It backs tests and single-process runs.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile

	// FailCreate makes Create reject with a conflict, simulating a
	// profile store that refuses the row.
	FailCreate bool
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]*domain.Profile)}
}

func (m *Memory) Create(ctx context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate {
		return apperr.New(apperr.KindConflict, "profile_exists", "a profile for this identity already exists")
	}
	if _, ok := m.profiles[p.ID]; ok {
		return apperr.New(apperr.KindConflict, "profile_exists", "a profile for this identity already exists")
	}
	for _, existing := range m.profiles {
		if existing.AuthID == p.AuthID {
			return apperr.New(apperr.KindConflict, "profile_exists", "a profile for this identity already exists")
		}
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.AuthID == authID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) Update(ctx context.Context, id string, fields UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "profile_not_found", "profile not found")
	}
	if fields.Name != nil {
		p.Name = *fields.Name
	}
	if fields.Lastname != nil {
		p.Lastname = *fields.Lastname
	}
	if fields.Age != nil {
		p.Age = *fields.Age
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	return nil
}
