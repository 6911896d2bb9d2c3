package ports

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/keyauth/core"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrNonceMismatch    = errors.New("nonce no longer current")
)

// RevocationStore is a self-expiring set of revoked token IDs (jti)
type RevocationStore interface {
	// Revoke blacklists tokenID for ttl and reports whether this call added
	// the entry. An already revoked ID yields false. A non-positive ttl is a
	// no-op.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// IdentityStore persists wallet identities. Every mutation touches a single
// row.
type IdentityStore interface {
	FindByAddress(ctx context.Context, address string) (*core.Identity, error)
	FindByID(ctx context.Context, id string) (*core.Identity, error)

	// Create inserts a new active identity holding nonce. Returns
	// ErrIdentityExists if the address is taken.
	Create(ctx context.Context, address, nonce string) (*core.Identity, error)

	// RotateNonce unconditionally replaces the current nonce.
	RotateNonce(ctx context.Context, id, nonce string) (*core.Identity, error)

	// ConsumeNonce replaces expected with next and stamps the login time,
	// atomically. Returns ErrNonceMismatch if expected is no longer current.
	ConsumeNonce(ctx context.Context, id, expected, next string) error

	SetActive(ctx context.Context, id string, active bool) (*core.Identity, error)
}
