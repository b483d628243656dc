package ports

import (
	"context"
	"time"
)

// Cache is a small KV store used for the active-rules snapshot. Invalidation
// is write-through on rules changes, never TTL-driven.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
