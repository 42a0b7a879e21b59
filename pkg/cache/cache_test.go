package cache

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Symbol string    `json:"symbol"`
	Values []float64 `json:"values"`
}

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	require.NoError(t, mc.Set(ctx, "r", report{Symbol: "AAPL", Values: []float64{1, 2}}, time.Minute))

	var got report
	require.NoError(t, mc.Get(ctx, "r", &got))
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, []float64{1, 2}, got.Values)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	var v int
	require.NoError(t, mc.Get(ctx, "k", &v))

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now most recent
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheRejectsUnencodable(t *testing.T) {
	mc := NewMemoryCache()
	assert.Error(t, mc.Set(context.Background(), "nan", math.NaN(), 0))
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	ok, err := mc.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "job", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "job"))
	ok, _ = mc.TryLock(ctx, "job", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(nil, nil)
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "k", "v", time.Minute))
	var s string
	require.NoError(t, lc.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &s), ErrCacheMiss)

	ok, err := lc.TryLock(ctx, "lock", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "analysis:AAPL:2020-01-01", GenerateKeyWithParams("analysis", "AAPL", "2020-01-01"))
	assert.Len(t, HashKey("AAPL,MSFT"), 32)
	assert.Equal(t, HashKey("x"), HashKey("x"))
}
