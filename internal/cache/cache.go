// Package cache provides the key-value layer behind session validation.
// Every authenticated request resolves a bearer token, which makes session
// lookups the hottest read in the daemon; implementations trade freshness
// for latency and rely on explicit invalidation when a session is revoked.
// Values are opaque byte slices; encoding is the caller's concern.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the cache.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a key-value store with per-entry TTL. Implementations must be
// safe for concurrent use by the request handlers.
type Cache interface {
	// Get returns the value for key, or ErrNotFound when the key is
	// missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A zero ttl keeps the entry
	// until it is deleted or evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the implementation's resources.
	Close() error
}
