// Package cache provides a generic, thread-safe bounded cache with strict
// FIFO eviction, plus an in-flight guard for deduplicating concurrent loads.
//
// The FIFO cache evicts the oldest-inserted entry when capacity is exceeded.
// Unlike an LRU cache, reads never refresh an entry's position: eviction order
// is fixed at insertion time. Statistics are always collected for
// observability; Prometheus metrics are optional via functional options.
package cache

import (
	"github.com/statelab/dashkit/errors"
)

// Cache represents a generic bounded cache interface.
// The cache is parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. A hit does not refresh the entry's
	// eviction position. Returns the value and true if found, zero value
	// and false otherwise.
	Get(key string) (V, bool)

	// Has reports whether the key is present without counting a hit or miss.
	Has(key string) bool

	// Set stores a value with the given key. If the number of distinct keys
	// would exceed the capacity, the oldest-inserted entry is evicted first.
	// Returns true if a new entry was created, false if an existing entry
	// was updated. Returns an error if the key is invalid.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Capacity returns the maximum number of entries the cache can hold.
	Capacity() int

	// Keys returns all keys in insertion order (oldest first).
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry is evicted from the cache.
// It receives the key and value of the evicted entry.
type EvictCallback[V any] func(key string, value V)

// validateKey validates a cache key for basic requirements.
// Returns a classified error if the key is invalid.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
