// Package natskv implements storage.Store on a NATS JetStream KV bucket.
// It is intended for shared deployments where several dashboard instances
// report into the same telemetry store.
package natskv

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/storage"
)

// Store is a NATS JetStream KV backed storage.Store.
type Store struct {
	bucket jetstream.KeyValue
}

// New creates (or binds to) the named KV bucket on the given connection.
func New(ctx context.Context, nc *nats.Conn, bucket string) (*Store, error) {
	if nc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natskv", "New", "nats connection cannot be nil")
	}
	if bucket == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natskv", "New", "bucket name cannot be empty")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, errors.WrapTransient(err, "natskv", "New", "create jetstream context")
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "dashkit local state and telemetry",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "natskv", "New", "create KV bucket")
	}

	return &Store{bucket: kv}, nil
}

// encodeKey maps store keys to the KV key charset. Slashes are legal in
// store keys but not in KV keys, so they become dots; the mapping is
// reversible because dots are rejected in store keys.
func encodeKey(key string) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "natskv", "encodeKey", "key cannot be empty")
	}
	if strings.Contains(key, ".") {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "natskv", "encodeKey", "key cannot contain dots")
	}
	return strings.ReplaceAll(key, "/", "."), nil
}

func decodeKey(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}

// Put stores data at key, overwriting any existing value.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	k, err := encodeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.bucket.Put(ctx, k, data); err != nil {
		return errors.WrapTransient(err, "natskv", "Put", "put in KV")
	}
	return nil
}

// Get retrieves the data stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := encodeKey(key)
	if err != nil {
		return nil, err
	}

	entry, err := s.bucket.Get(ctx, k)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "natskv", "Get", key)
		}
		return nil, errors.WrapTransient(err, "natskv", "Get", "get from KV")
	}
	return entry.Value(), nil
}

// List returns all keys matching prefix, in lexicographic order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.bucket.ListKeys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "natskv", "List", "list KV keys")
	}

	var keys []string
	for k := range lister.Keys() {
		key := decodeKey(k)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes the data at key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	k, err := encodeKey(key)
	if err != nil {
		return err
	}

	if err := s.bucket.Delete(ctx, k); err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return errors.WrapTransient(err, "natskv", "Delete", "delete from KV")
	}
	return nil
}

// Interface guard
var _ storage.Store = (*Store)(nil)
