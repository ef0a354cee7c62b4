package cache

import (
	"context"
	"time"
)

// Cache is the read-through layer for hot doctor and patient records.
// A miss is never an error; callers fall back to the database.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
