// Package cache provides generic, thread-safe caches with built-in statistics.
//
// Two policies are offered:
//   - Simple: no eviction, entries live until deleted or cleared (key material,
//     spatial index bins)
//   - LRU: bounded size, least recently used entries are evicted (compiled patterns)
//
// Statistics are always collected; Prometheus export is optional via WithMetrics.
package cache

import (
	"github.com/c360/stanagfeed/errors"
)

// Cache represents a generic cache keyed by string.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently in the cache, in no particular order.
	Keys() []string

	// Stats returns the cache statistics.
	Stats() *Statistics

	// Close releases resources held by the cache.
	Close() error
}

// EvictCallback is called when an entry leaves the cache by deletion, eviction or Clear.
type EvictCallback[V any] func(key string, value V)

// NewSimple creates a cache with no eviction policy.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	return newMemoryCache(0, collectOptions(options))
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "max size must be positive")
	}
	return newMemoryCache(maxSize, collectOptions(options))
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
