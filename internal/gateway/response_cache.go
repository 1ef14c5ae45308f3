package gateway

import (
	"context"
	"time"
)

// CachedResponse is what the HTTP idempotency middleware stores per key.
type CachedResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
}

// ResponseCache caches whole HTTP responses keyed by Idempotency-Key, so
// retried requests short-circuit before reaching the engine. Separate from
// the engine's own transactional dedup, which remains authoritative.
type ResponseCache interface {
	// Get returns the cached response, nil on a miss.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	// Save stores the response with a TTL.
	Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error
}
