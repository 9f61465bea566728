// Package kv abstracts the shared key-value store that holds live table
// state. Production runs against redis; tests and single-node dev mode use
// the in-memory implementation.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the surface the engine needs from the shared store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes key with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX writes key only if it is absent and reports whether the write
	// won. Used for short-lived locks.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Keys returns all keys matching a glob pattern such as "runtime:*".
	Keys(ctx context.Context, pattern string) ([]string, error)

	// ListPush prepends value to the list at key, trims the list to the
	// newest max entries and refreshes its TTL. Entries read back newest
	// first.
	ListPush(ctx context.Context, key string, value []byte, max int64, ttl time.Duration) error

	// ListRange returns entries start..stop inclusive, newest first.
	// Negative indexes count from the end as in redis.
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// Close releases the underlying connection, if any.
	Close() error
}
