package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const lowStockKey = "catalog:low_stock"

// LowStockCache keeps the unified reorder view in Redis for a short TTL so
// dashboard polling does not hammer the two low-stock scans.
type LowStockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLowStockCache instantiates the cache helper.
func NewLowStockCache(client *redis.Client, ttl time.Duration) *LowStockCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LowStockCache{client: client, ttl: ttl}
}

// Get loads the cached summary or populates it using the loader.
func (c *LowStockCache) Get(ctx context.Context, loader func(context.Context) (LowStockSummary, error)) (LowStockSummary, error) {
	if loader == nil {
		return LowStockSummary{}, errors.New("catalog: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, lowStockKey).Bytes()
	if err == nil {
		var summary LowStockSummary
		if err := json.Unmarshal(payload, &summary); err == nil {
			return summary, nil
		}
		// Fall through and rebuild on a corrupt entry.
	} else if !errors.Is(err, redis.Nil) {
		return LowStockSummary{}, err
	}
	summary, err := loader(ctx)
	if err != nil {
		return LowStockSummary{}, err
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return LowStockSummary{}, err
	}
	if err := c.client.Set(ctx, lowStockKey, raw, c.ttl).Err(); err != nil {
		return LowStockSummary{}, err
	}
	return summary, nil
}

// Invalidate drops the cached summary after a stock mutation.
func (c *LowStockCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, lowStockKey).Err()
}
