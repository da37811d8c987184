package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]MemoryOption{WithMemoryClock(clock.Now), WithMemoryCleanup(0)}, opts...)
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clock
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "q:aapl", quote{Symbol: "AAPL", Price: 150}, time.Minute))

	var got quote
	require.NoError(t, mc.Get(ctx, "q:aapl", &got))
	assert.Equal(t, quote{Symbol: "AAPL", Price: 150}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", time.Minute))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	ok, err := mc.Exists(ctx, "missing", "raw")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "k", 1, time.Minute))
	clock.Advance(2 * time.Minute)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	clock.Advance(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now fresher than b
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	calls := 0
	load := func(context.Context) ([]quote, error) {
		calls++
		return []quote{{Symbol: "BTC", Price: 60000}}, nil
	}

	first, err := GetOrLoad(ctx, mc, "search:btc", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, mc, "search:btc", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = GetOrLoad(ctx, mc, "search:err", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	assert.Error(t, err)
	ok, _ := mc.Exists(ctx, "search:err")
	assert.False(t, ok)
}

func TestGetOrLoad_NilCache(t *testing.T) {
	v, err := GetOrLoad(context.Background(), nil, "k", time.Minute, func(context.Context) (string, error) {
		return "loaded", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "fmp:search:aapl", GenerateKeyWithParams("fmp", "search", "AAPL"))

	long := GenerateKeyWithParams("cg", string(make([]byte, 300)))
	assert.Contains(t, long, "cg:h:")
	assert.Len(t, long, len("cg:h:")+32)
}
