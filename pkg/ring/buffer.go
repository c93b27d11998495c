package ring

import (
	"sync"

	"github.com/statelab/dashkit/errors"
)

// ringBuffer is a thread-safe ring buffer with configurable overflow policies.
type ringBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int         // next write position
	tail     int         // next read position
	stats    *Statistics // ALWAYS initialized for observability
	metrics  *ringMetrics
	opts     *ringOptions[T]
}

// newRingBuffer creates a new ring buffer instance.
// Returns an error if metrics registration fails when requested.
func newRingBuffer[T any](capacity int, opts *ringOptions[T]) (*ringBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1 // Minimum capacity
	}

	// Stats are ALWAYS initialized - observability is not optional
	stats := NewStatistics()

	var metrics *ringMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "ring", "newRingBuffer", "metrics registration")
		}
	}

	return &ringBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    stats,
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item to the buffer according to the overflow policy.
func (rb *ringBuffer[T]) Write(item T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == rb.capacity {
		switch rb.opts.overflowPolicy {
		case DropOldest:
			// Remove oldest item to make room
			droppedItem := rb.items[rb.tail]
			rb.tail = (rb.tail + 1) % rb.capacity
			rb.size--

			rb.stats.Overflow()
			rb.stats.Drop()
			if rb.metrics != nil {
				rb.metrics.recordDrop()
			}

			if rb.opts.dropCallback != nil {
				// Call dropCallback outside the lock to avoid deadlock
				defer rb.opts.dropCallback(droppedItem)
			}

		case DropNewest:
			rb.stats.Overflow()
			rb.stats.Drop()
			if rb.metrics != nil {
				rb.metrics.recordDrop()
			}

			if rb.opts.dropCallback != nil {
				defer rb.opts.dropCallback(item)
			}
			return nil
		}
	}

	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	rb.size++

	rb.stats.Write()
	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.recordWrite(rb.size)
	}

	return nil
}

// Read retrieves and removes the oldest item from the buffer.
func (rb *ringBuffer[T]) Read() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.size == 0 {
		return zero, false
	}

	item := rb.items[rb.tail]
	rb.items[rb.tail] = zero // Clear for GC
	rb.tail = (rb.tail + 1) % rb.capacity
	rb.size--

	rb.stats.Read()
	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.updateSize(rb.size)
	}

	return item, true
}

// Snapshot returns a copy of all buffered items in insertion order without
// removing them. This is the read path for report building: it never mutates
// the buffer.
func (rb *ringBuffer[T]) Snapshot() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]T, rb.size)
	for i := 0; i < rb.size; i++ {
		result[i] = rb.items[(rb.tail+i)%rb.capacity]
	}
	return result
}

// Peek retrieves the oldest item without removing it from the buffer.
func (rb *ringBuffer[T]) Peek() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.size == 0 {
		return zero, false
	}
	return rb.items[rb.tail], true
}

// Size returns the current number of items in the buffer.
func (rb *ringBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (rb *ringBuffer[T]) Capacity() int {
	return rb.capacity // immutable, no lock needed
}

// IsFull returns true if the buffer is at maximum capacity.
func (rb *ringBuffer[T]) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size == rb.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (rb *ringBuffer[T]) IsEmpty() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size == 0
}

// Clear removes all items from the buffer.
func (rb *ringBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := 0; i < rb.capacity; i++ {
		rb.items[i] = zero
	}
	rb.head = 0
	rb.tail = 0
	rb.size = 0

	rb.stats.UpdateSize(0)
	if rb.metrics != nil {
		rb.metrics.updateSize(0)
	}
}

// Replace atomically replaces the buffer contents with the given items.
// If there are more items than capacity, only the newest capacity items are
// kept, honoring the FIFO bound.
func (rb *ringBuffer[T]) Replace(items []T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(items) > rb.capacity {
		items = items[len(items)-rb.capacity:]
	}

	var zero T
	for i := 0; i < rb.capacity; i++ {
		rb.items[i] = zero
	}
	copy(rb.items, items)
	rb.tail = 0
	rb.head = len(items) % rb.capacity
	rb.size = len(items)

	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.updateSize(rb.size)
	}
}

// Stats returns buffer statistics (always available for observability).
func (rb *ringBuffer[T]) Stats() *Statistics {
	return rb.stats
}
