package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// MemoryStore keeps identities in process memory. Intended for development
// and tests.
type MemoryStore struct {
	byID      map[string]*core.Identity
	byAddress map[string]string
	mu        sync.RWMutex
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*core.Identity),
		byAddress: make(map[string]string),
		now:       time.Now,
	}
}

var _ ports.IdentityStore = (*MemoryStore)(nil)

func (s *MemoryStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, ports.ErrIdentityNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrIdentityNotFound
	}
	return clone(identity), nil
}

func (s *MemoryStore) Create(ctx context.Context, address, nonce string) (*core.Identity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[address]; exists {
		return nil, ports.ErrIdentityExists
	}

	now := s.now().UTC()
	identity := &core.Identity{
		ID:        id.String(),
		Address:   address,
		Nonce:     nonce,
		Role:      core.RoleUser,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[identity.ID] = identity
	s.byAddress[address] = identity.ID

	return clone(identity), nil
}

func (s *MemoryStore) RotateNonce(ctx context.Context, id, nonce string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrIdentityNotFound
	}
	identity.Nonce = nonce
	identity.UpdatedAt = s.now().UTC()

	return clone(identity), nil
}

func (s *MemoryStore) ConsumeNonce(ctx context.Context, id, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return ports.ErrIdentityNotFound
	}
	if identity.Nonce != expected {
		return ports.ErrNonceMismatch
	}

	now := s.now().UTC()
	identity.Nonce = next
	identity.LastLoginAt = &now
	identity.UpdatedAt = now

	return nil
}

func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrIdentityNotFound
	}
	identity.Active = active
	identity.UpdatedAt = s.now().UTC()

	return clone(identity), nil
}

// SetRole changes the role of an identity. Roles are managed outside the
// auth flows; this exists for seeding.
func (s *MemoryStore) SetRole(id string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return ports.ErrIdentityNotFound
	}
	identity.Role = role
	return nil
}

func clone(i *core.Identity) *core.Identity {
	c := *i
	if i.LastLoginAt != nil {
		t := *i.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
