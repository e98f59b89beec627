package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort byte cache; callers must tolerate misses
// and errors.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
