package cache

import (
	"context"
	"time"
)

// BytesCache хранит сериализованные представления (tracking view заказа).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RateLimiter is a fixed-window counter shared between API and worker instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
