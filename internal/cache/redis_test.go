package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaking/internal/cache"
	"github.com/oggyb/muzz-matchmaking/internal/config"
)

func newCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	c := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLikeCountRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	_, ok, err := c.GetLikeCount(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache is a miss")

	require.NoError(t, c.SetLikeCount(ctx, 7, 3))
	n, ok, err := c.GetLikeCount(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	require.NoError(t, c.InvalidateLikeCount(ctx, 7, 8))
	_, ok, err = c.GetLikeCount(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptLikeCountIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	require.NoError(t, mr.Set(c.KeyForLikeCount(1), "not-a-number"))
	_, ok, err := c.GetLikeCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNearbyOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	// Paris center, ~5km east, ~20km north, Lyon (~390km)
	require.NoError(t, c.IndexLocation(ctx, 1, 2.3522, 48.8566))
	require.NoError(t, c.IndexLocation(ctx, 2, 2.4200, 48.8566))
	require.NoError(t, c.IndexLocation(ctx, 3, 2.3522, 49.0366))
	require.NoError(t, c.IndexLocation(ctx, 4, 4.8357, 45.7640))

	hits, err := c.Nearby(ctx, 2.3522, 48.8566, 50, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, uint64(1), hits[0].UserID)
	assert.Equal(t, uint64(2), hits[1].UserID)
	assert.Equal(t, uint64(3), hits[2].UserID)
	assert.InDelta(t, 5.0, hits[1].DistanceKm, 0.5)
	assert.InDelta(t, 20.0, hits[2].DistanceKm, 0.5)

	require.NoError(t, c.RemoveLocation(ctx, 2))
	hits, err = c.Nearby(ctx, 2.3522, 48.8566, 50, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
