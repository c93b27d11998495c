package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/storage"
)

// memStore is an in-memory storage.Store for tests. failPuts makes every
// write fail to exercise the degraded path.
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failPuts bool
	failGets bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPuts {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "memStore", "Put", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[key] = cp
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets {
		return nil, errors.WrapTransient(errors.ErrStoreUnavailable, "memStore", "Get", key)
	}
	data, ok := s.data[key]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "memStore", "Get", key)
	}
	return data, nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

var _ storage.Store = (*memStore)(nil)

func TestRecordStampsEventAndPersists(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	r, err := NewRecorder(ctx, store)
	require.NoError(t, err)

	r.RecordView(ctx, "art-1", "First Article", "tech")

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventView, events[0].Kind)
	assert.Equal(t, r.Session().ID, events[0].SessionID)
	assert.False(t, events[0].Timestamp.IsZero())

	// The log landed in the store as JSON.
	data, err := store.Get(ctx, storeKey)
	require.NoError(t, err)
	var persisted []Event
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 1)
}

func TestBufferBound(t *testing.T) {
	ctx := context.Background()

	r, err := NewRecorder(ctx, nil)
	require.NoError(t, err)

	for i := 0; i < MaxEvents+1; i++ {
		r.RecordView(ctx, fmt.Sprintf("art-%d", i), "Article", "")
	}

	assert.Equal(t, MaxEvents, r.Size())

	// The earliest-recorded event is gone; the newest survive.
	events := r.Events()
	assert.Equal(t, "art-1", events[0].View.ContentID)
	assert.Equal(t, fmt.Sprintf("art-%d", MaxEvents), events[len(events)-1].View.ContentID)
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	r1, err := NewRecorder(ctx, store)
	require.NoError(t, err)
	r1.RecordSearch(ctx, "golang", 7)
	r1.RecordView(ctx, "art-1", "First", "")

	r2, err := NewRecorder(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 2, r2.Size())
	assert.Equal(t, EventSearch, r2.Events()[0].Kind)
}

func TestCorruptStoreStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Put(ctx, storeKey, []byte("not json{")))

	r, err := NewRecorder(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Size())
}

func TestUnavailableStoreStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failGets = true

	r, err := NewRecorder(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Size())
}

func TestPersistFailureDoesNotBlockRecording(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failPuts = true

	r, err := NewRecorder(ctx, store)
	require.NoError(t, err)

	r.RecordView(ctx, "art-1", "First", "")
	r.RecordView(ctx, "art-2", "Second", "")

	// Recording carried on in memory.
	assert.Equal(t, 2, r.Size())
}

func TestRecordHonorsProvidedFields(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	r, err := NewRecorder(ctx, nil)
	require.NoError(t, err)

	r.Record(ctx, Event{
		Kind:      EventSearch,
		Timestamp: ts,
		SessionID: "external-session",
		Search:    &SearchEvent{Query: "caching", ResultCount: 3},
	})

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ts, events[0].Timestamp)
	assert.Equal(t, "external-session", events[0].SessionID)
}
