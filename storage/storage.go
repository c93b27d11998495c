// Package storage provides pluggable backend interfaces for the local
// key-value store used by the coordination layer.
//
// The Store interface models a capacity-unaware byte-string store: keys are
// strings, values are opaque []byte (the analytics layer stores a
// JSON-encoded event log under a single key). Capacity bounds are enforced
// by the callers, not the store.
//
// Example implementations:
//   - filestore.Store: atomic-write files on local disk (default)
//   - natskv.Store: NATS JetStream KV bucket (shared deployments)
//
// All Store implementations must be safe for concurrent use.
package storage

import "context"

// Store is the pluggable backend interface for local persistence.
type Store interface {
	// Put stores binary data at the specified key, overwriting any
	// existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves binary data for the specified key.
	// Returns errors.ErrKeyNotFound (wrapped) if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys matching the specified prefix, in
	// lexicographic order. Returns an empty slice if none match.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the specified key.
	// Returns nil if the key doesn't exist (idempotent operation).
	Delete(ctx context.Context, key string) error
}
