// Package ring provides a generic, thread-safe capacity-bounded ring buffer.
//
// The buffer is append-only with a configurable overflow policy:
//   - DropOldest removes the oldest items to make room (FIFO trim)
//   - DropNewest drops incoming items when full
//
// Statistics are always collected for observability. Prometheus metrics can
// be optionally enabled via the WithMetrics() functional option.
package ring

// Buffer represents a capacity-bounded ring buffer parameterized by item type T.
type Buffer[T any] interface {
	// Write adds an item to the buffer. Behavior when full depends on the
	// overflow policy. Returns an error if the operation fails.
	Write(item T) error

	// Read retrieves and removes the oldest item from the buffer.
	// Returns the item and true, or zero value and false if empty.
	Read() (T, bool)

	// Snapshot returns a copy of all buffered items in insertion order
	// (oldest first) without removing them. The returned slice is owned by
	// the caller.
	Snapshot() []T

	// Peek retrieves the oldest item without removing it.
	Peek() (T, bool)

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull returns true if the buffer is at maximum capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Replace atomically replaces the buffer contents with the given items
	// in order. If there are more items than capacity, only the newest
	// capacity items are kept. Used to restore a persisted buffer.
	Replace(items []T)

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to the overflow policy.
type DropCallback[T any] func(item T)

// New creates a new ring buffer with the specified capacity and options.
// Stats are ALWAYS collected for observability. Metrics are optional via
// WithMetrics(). Returns an error if metrics registration fails.
func New[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newRingBuffer(capacity, opts)
}
