package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/keyauth/ports"
)

type revocation struct {
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryStore is an in-memory implementation of the RevocationStore interface.
// Every entry removes itself when its TTL elapses.
type MemoryStore struct {
	revoked map[string]*revocation
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory revocation store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]*revocation),
		now:     time.Now,
	}
}

var _ ports.RevocationStore = (*MemoryStore)(nil)

// Revoke marks a token ID as revoked until ttl elapses
func (s *MemoryStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	now := s.now()
	expiresAt := now.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	added := true
	if existing, ok := s.revoked[tokenID]; ok {
		added = !now.Before(existing.expiresAt)
		// Never shorten an existing entry
		if !expiresAt.After(existing.expiresAt) {
			return added, nil
		}
		existing.timer.Stop()
	}

	entry := &revocation{expiresAt: expiresAt}
	entry.timer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Only delete if this entry has not been replaced
		if current, ok := s.revoked[tokenID]; ok && current == entry {
			delete(s.revoked, tokenID)
		}
	})
	s.revoked[tokenID] = entry

	return added, nil
}

// IsRevoked checks if a token ID is revoked
func (s *MemoryStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}

	return s.now().Before(entry.expiresAt), nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
