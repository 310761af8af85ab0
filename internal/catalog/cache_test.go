package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LowStockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLowStockCache(client, time.Minute), mr
}

func TestLowStockCacheLoadsOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (LowStockSummary, error) {
		calls++
		return LowStockSummary{Items: []Item{{ID: 1, Name: "Stapler"}}}, nil
	}

	first, err := cache.Get(ctx, loader)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	second, err := cache.Get(ctx, loader)
	require.NoError(t, err)
	require.Equal(t, first.Items, second.Items)
	require.Equal(t, 1, calls)
}

func TestLowStockCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (LowStockSummary, error) {
		calls++
		return LowStockSummary{}, nil
	}

	_, err := cache.Get(ctx, loader)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	_, err = cache.Get(ctx, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestLowStockCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (LowStockSummary, error) {
		calls++
		return LowStockSummary{}, nil
	}

	_, err := cache.Get(ctx, loader)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
