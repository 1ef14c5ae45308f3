package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

const cachePrefix = "idempotency:"

// ResponseCache stores whole HTTP responses keyed by Idempotency-Key so
// retried requests short-circuit at the edge. The engine's transactional
// dedup stays authoritative; this cache only saves a round-trip.
type ResponseCache struct {
	client *redis.Client
}

func NewResponseCache(client *redis.Client) *ResponseCache {
	return &ResponseCache{client: client}
}

func (r *ResponseCache) Get(ctx context.Context, key string) (*gateway.CachedResponse, error) {
	val, err := r.client.Get(ctx, cachePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached response: %w", err)
	}

	var resp gateway.CachedResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal cached response: %w", err)
	}
	return &resp, nil
}

func (r *ResponseCache) Save(ctx context.Context, key string, response gateway.CachedResponse, ttl time.Duration) error {
	bytes, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return r.client.Set(ctx, cachePrefix+key, bytes, ttl).Err()
}
