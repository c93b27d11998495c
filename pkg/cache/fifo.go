package cache

import (
	"container/list"
	"sync"

	"github.com/statelab/dashkit/errors"
)

// fifoEntry represents an entry in the FIFO cache.
type fifoEntry[V any] struct {
	key   string
	value V
}

// fifoCache is a thread-safe bounded cache with strict FIFO eviction.
// Entries are evicted in insertion order when the maximum size is exceeded;
// reads never refresh an entry's position.
type fifoCache[V any] struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*list.Element // key -> list element
	order   *list.List               // insertion order, oldest at back
	stats   *Statistics              // ALWAYS initialized
	metrics *cacheMetrics            // Optional, if metrics enabled
	evictFn EvictCallback[V]         // Optional callback
}

// newFIFOCache creates a new FIFO cache with the specified maximum size.
// A maxSize of zero is legal and disables caching: every Set evicts
// immediately and the cache stays empty.
// Returns an error if metrics registration fails when requested.
func newFIFOCache[V any](maxSize int, opts *cacheOptions[V]) (*fifoCache[V], error) {
	if maxSize < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "newFIFOCache",
			"maxSize cannot be negative")
	}

	// Stats are ALWAYS initialized - observability is not optional
	stats := NewStatistics()

	var metrics *cacheMetrics
	// Optionally expose stats as Prometheus metrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newFIFOCache", "metrics registration")
		}
	}

	return &fifoCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   stats,
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

// Get retrieves a value by key. The entry's eviction position is unchanged.
func (c *fifoCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	element, exists := c.items[key]
	var value V
	if exists {
		value = element.Value.(*fifoEntry[V]).value
	}
	c.mu.RUnlock()

	// ALWAYS track in stats (observability is not optional)
	if exists {
		c.stats.Hit()
		if c.metrics != nil {
			c.metrics.recordHit()
		}
	} else {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
	}

	return value, exists
}

// Has reports whether the key is present. Does not count a hit or miss.
func (c *fifoCache[V]) Has(key string) bool {
	c.mu.RLock()
	_, exists := c.items[key]
	c.mu.RUnlock()
	return exists
}

// Set stores a value with the given key. If inserting a new key would exceed
// the capacity, the oldest-inserted entry is evicted first. The capacity
// invariant holds at all times: eviction happens under the same lock as the
// insertion.
func (c *fifoCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evicted []fifoEntry[V]

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		// Update in place: overwriting does not change insertion order
		element.Value.(*fifoEntry[V]).value = value
		c.mu.Unlock()

		c.stats.Set()
		if c.metrics != nil {
			c.metrics.recordSet()
		}
		return false, nil
	}

	entry := &fifoEntry[V]{key: key, value: value}
	c.items[key] = c.order.PushFront(entry)

	// Trim oldest-inserted entries until the bound holds. With maxSize 0
	// the entry just inserted is removed immediately.
	for len(c.items) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*fifoEntry[V])
		delete(c.items, old.key)
		c.order.Remove(oldest)

		c.stats.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
		if c.evictFn != nil {
			evicted = append(evicted, *old)
		}
	}

	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}

	// Call eviction callbacks outside the lock to prevent deadlock
	for _, e := range evicted {
		c.evictFn(e.key, e.value)
	}

	return true, nil
}

// Delete removes an entry by key.
func (c *fifoCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}

	entry := element.Value.(*fifoEntry[V])
	delete(c.items, key)
	c.order.Remove(element)
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Delete()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordDelete()
		c.metrics.updateSize(size)
	}

	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}

	return true, nil
}

// Clear removes all entries from the cache.
func (c *fifoCache[V]) Clear() error {
	var evicted []fifoEntry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		evicted = make([]fifoEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, *element.Value.(*fifoEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}

	for _, e := range evicted {
		c.evictFn(e.key, e.value)
	}

	return nil
}

// Size returns the current number of entries in the cache.
func (c *fifoCache[V]) Size() int {
	c.mu.RLock()
	size := len(c.items)
	c.mu.RUnlock()
	return size
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *fifoCache[V]) Capacity() int {
	return c.maxSize // immutable, no lock needed
}

// Keys returns all keys in insertion order (oldest first).
func (c *fifoCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Back(); element != nil; element = element.Prev() {
		keys = append(keys, element.Value.(*fifoEntry[V]).key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *fifoCache[V]) Stats() *Statistics {
	return c.stats
}
