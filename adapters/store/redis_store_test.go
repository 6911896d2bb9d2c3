package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStore_Revoke(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "")
	ctx := context.Background()

	t.Run("not revoked initially", func(t *testing.T) {
		revoked, err := s.IsRevoked(ctx, "jti-a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("revoked after revoke", func(t *testing.T) {
		added, err := s.Revoke(ctx, "jti-a", time.Minute)
		require.NoError(t, err)
		assert.True(t, added)

		revoked, err := s.IsRevoked(ctx, "jti-a")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("second revoke is not added", func(t *testing.T) {
		added, err := s.Revoke(ctx, "jti-a", time.Minute)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("key carries token ttl", func(t *testing.T) {
		key := DefaultRedisPrefix + "jti-a"
		assert.True(t, mr.Exists(key))
		assert.Equal(t, time.Minute, mr.TTL(key))
	})

	t.Run("entry expires with the token", func(t *testing.T) {
		mr.FastForward(time.Minute + time.Second)

		revoked, err := s.IsRevoked(ctx, "jti-a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non-positive ttl writes nothing", func(t *testing.T) {
		added, err := s.Revoke(ctx, "jti-b", 0)
		require.NoError(t, err)
		assert.False(t, added)
		assert.False(t, mr.Exists(DefaultRedisPrefix+"jti-b"))
	})
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "custom:")

	_, err := s.Revoke(context.Background(), "jti", time.Hour)
	require.NoError(t, err)
	assert.True(t, mr.Exists("custom:jti"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "")
	mr.Close()

	_, err := s.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)

	_, err = s.Revoke(context.Background(), "jti", time.Minute)
	assert.Error(t, err)
}
