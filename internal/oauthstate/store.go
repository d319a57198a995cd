// Package oauthstate holds short-lived state nonces for the web OAuth flow.
// A nonce is issued at initiation, bound to the browser via cookie, and
// consumed exactly once when the provider redirects back.
package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Store issues and consumes one-time state nonces.
type Store interface {
	// Issue creates a nonce valid for the given duration.
	Issue(ctx context.Context, ttl time.Duration) (string, error)
	// Consume removes the nonce. Returns false if it was never issued,
	// already consumed, or has expired.
	Consume(ctx context.Context, state string) bool
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]time.Time),
		nowF: time.Now().UTC,
	}
}

// Issue creates a random nonce valid for ttl. Expired entries are swept on
// the way in so the map does not grow with abandoned flows.
func (s *MemoryStore) Issue(ctx context.Context, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	for k, expiresAt := range s.m {
		if !expiresAt.After(now) {
			delete(s.m, k)
		}
	}
	s.m[state] = now.Add(ttl)
	return state, nil
}

// Consume removes the nonce and reports whether it was live.
func (s *MemoryStore) Consume(ctx context.Context, state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.m[state]
	if !ok {
		return false
	}
	delete(s.m, state)
	return expiresAt.After(s.nowF())
}
