package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Revoke(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	revoked, err := s.IsRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	added, err := s.Revoke(ctx, "jti-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, added)

	revoked, err = s.IsRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.IsRevoked(ctx, "jti-b")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStore_RevokeTwiceReportsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	added, err := s.Revoke(ctx, "jti", time.Hour)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Revoke(ctx, "jti", time.Hour)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestMemoryStore_ConcurrentRevokeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := s.Revoke(ctx, "jti", time.Hour)
			if err == nil && added {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_NonPositiveTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	added, err := s.Revoke(ctx, "expired", 0)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = s.Revoke(ctx, "expired", -time.Second)
	require.NoError(t, err)

	revoked, err := s.IsRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_EntriesExpireOnTheirOwn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Revoke(ctx, "short", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 5*time.Millisecond)

	revoked, err := s.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStore_ExpiredEntryNotReportedBeforeTimerFires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Revoke(ctx, "jti", time.Hour)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	revoked, err := s.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)

	added, err := s.Revoke(ctx, "jti", time.Hour)
	require.NoError(t, err)
	assert.True(t, added)
}

func TestMemoryStore_NeverShortensEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Revoke(ctx, "jti", time.Hour)
	require.NoError(t, err)
	_, err = s.Revoke(ctx, "jti", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	revoked, err := s.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, s.Len())
}
