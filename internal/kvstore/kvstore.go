// Package kvstore is the key/value store sessions live in. Every value carries
// a store-level expiry; readers never see an expired value even if it has not
// been swept yet.
package kvstore

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the value and true, or "" and false if the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need expired entries removed periodically.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
