package cache

import "sync"

// Guard tracks keys with a load currently in flight. It prevents a second
// concurrent fetch for the same key: a key is a member from the moment a
// fetch is initiated until it settles, success or failure. Callers observing
// membership must not initiate a duplicate fetch.
type Guard struct {
	mu      sync.RWMutex
	loading map[string]struct{}
}

// NewGuard creates an empty in-flight guard.
func NewGuard() *Guard {
	return &Guard{
		loading: make(map[string]struct{}),
	}
}

// IsLoading reports whether a load is in flight for key.
func (g *Guard) IsLoading(key string) bool {
	g.mu.RLock()
	_, ok := g.loading[key]
	g.mu.RUnlock()
	return ok
}

// MarkLoading marks key as in flight. Returns false if it was already marked,
// in which case the caller must not start a fetch. The check and the mark are
// a single atomic step.
func (g *Guard) MarkLoading(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.loading[key]; ok {
		return false
	}
	g.loading[key] = struct{}{}
	return true
}

// ClearLoading removes the in-flight marker for key. Safe to call when the
// key is not marked. Must run on every fetch exit path so a failed fetch
// does not permanently block retries.
func (g *Guard) ClearLoading(key string) {
	g.mu.Lock()
	delete(g.loading, key)
	g.mu.Unlock()
}

// Size returns the number of keys currently in flight.
func (g *Guard) Size() int {
	g.mu.RLock()
	n := len(g.loading)
	g.mu.RUnlock()
	return n
}
