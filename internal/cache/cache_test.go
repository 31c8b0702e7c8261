package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Expected float64 `json:"expected"`
	Paid     float64 `json:"paid"`
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var got summary
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", summary{Expected: 100, Paid: 40}, time.Minute))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, summary{Expected: 100, Paid: 40}, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	c.now = func() time.Time { return now.Add(2 * time.Second) }

	var v int
	found, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := 1; i <= 3; i++ {
		n, err = c.Incr(ctx, "gen")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisCacheSatisfiesInterface(t *testing.T) {
	var _ Cache = NewRedisCache("localhost:6379", 0, "test:")
	var _ Cache = NewMemoryCache()
}
