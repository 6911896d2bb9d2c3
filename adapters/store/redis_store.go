package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces revocation keys.
const DefaultRedisPrefix = "keyauth:revoked:"

// RedisStore is a Redis implementation of the RevocationStore interface
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

var _ ports.RevocationStore = (*RedisStore)(nil)

// Revoke marks a token ID as revoked in Redis with SET NX, so concurrent
// callers agree on a single winner. The key expires together with the token.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	added, err := s.client.SetNX(ctx, s.prefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	return added, nil
}

// IsRevoked checks if a token ID is revoked in Redis
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}

	return val > 0, nil
}
