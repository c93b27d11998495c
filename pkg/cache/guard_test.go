package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestGuardMarkAndClear(t *testing.T) {
	g := NewGuard()

	if g.IsLoading("x") {
		t.Error("Expected no in-flight marker initially")
	}

	if !g.MarkLoading("x") {
		t.Fatal("Expected first mark to succeed")
	}
	if !g.IsLoading("x") {
		t.Error("Expected in-flight marker after mark")
	}

	// Second caller observes membership and must skip
	if g.MarkLoading("x") {
		t.Error("Expected second mark to fail while in flight")
	}

	g.ClearLoading("x")
	if g.IsLoading("x") {
		t.Error("Expected marker cleared")
	}

	// Retry after clear works
	if !g.MarkLoading("x") {
		t.Error("Expected mark to succeed after clear")
	}
}

// TestGuardClearAfterFailure models the failed-fetch sequence: mark, a second
// caller skips, the fetch fails, clear runs, and the key is loadable again.
func TestGuardClearAfterFailure(t *testing.T) {
	g := NewGuard()

	if !g.MarkLoading("x") {
		t.Fatal("Expected mark to succeed")
	}
	if !g.IsLoading("x") {
		t.Fatal("Expected second caller to observe in-flight state")
	}

	// Simulated fetch failure: clear must run unconditionally
	g.ClearLoading("x")

	if g.IsLoading("x") {
		t.Error("Expected marker cleared after failure")
	}
}

func TestGuardClearUnknownKey(t *testing.T) {
	g := NewGuard()
	g.ClearLoading("never-marked") // must not panic
	if g.Size() != 0 {
		t.Errorf("Expected size 0, got %d", g.Size())
	}
}

func TestGuardIndependentKeys(t *testing.T) {
	g := NewGuard()

	g.MarkLoading("a")
	g.MarkLoading("b")

	if g.Size() != 2 {
		t.Errorf("Expected 2 in-flight keys, got %d", g.Size())
	}

	g.ClearLoading("a")
	if g.IsLoading("a") {
		t.Error("Expected 'a' cleared")
	}
	if !g.IsLoading("b") {
		t.Error("Expected 'b' still in flight")
	}
}

// TestGuardConcurrentMark verifies exactly one of N concurrent callers wins
// the mark for the same key.
func TestGuardConcurrentMark(t *testing.T) {
	g := NewGuard()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.MarkLoading("contested") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly 1 winner, got %d", winners)
	}
}

func TestGuardConcurrentDistinctKeys(t *testing.T) {
	g := NewGuard()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", i)
			if !g.MarkLoading(key) {
				t.Errorf("Expected mark for distinct key %s to succeed", key)
			}
			g.ClearLoading(key)
		}(i)
	}
	wg.Wait()

	if g.Size() != 0 {
		t.Errorf("Expected all markers cleared, got %d", g.Size())
	}
}
