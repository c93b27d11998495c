package ring

import (
	"fmt"
	"sync"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	buf, err := New[int](3)
	if err != nil {
		t.Fatalf("Unexpected error creating buffer: %v", err)
	}

	if !buf.IsEmpty() {
		t.Error("Expected empty buffer")
	}

	for i := 1; i <= 3; i++ {
		if err := buf.Write(i); err != nil {
			t.Fatalf("Unexpected write error: %v", err)
		}
	}

	if !buf.IsFull() {
		t.Error("Expected full buffer")
	}
	if buf.Size() != 3 {
		t.Errorf("Expected size 3, got %d", buf.Size())
	}

	for i := 1; i <= 3; i++ {
		item, ok := buf.Read()
		if !ok {
			t.Fatalf("Expected item %d", i)
		}
		if item != i {
			t.Errorf("Expected %d, got %d (FIFO order)", i, item)
		}
	}

	if _, ok := buf.Read(); ok {
		t.Error("Expected empty read to fail")
	}
}

func TestDropOldestPolicy(t *testing.T) {
	buf, err := New[int](3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i := 1; i <= 5; i++ {
		_ = buf.Write(i)
	}

	if buf.Size() != 3 {
		t.Errorf("Expected size 3, got %d", buf.Size())
	}

	// Oldest two dropped; retained items are the most recent by write order
	snapshot := buf.Snapshot()
	expected := []int{3, 4, 5}
	for i, v := range expected {
		if snapshot[i] != v {
			t.Errorf("Expected %v, got %v", expected, snapshot)
			break
		}
	}

	if buf.Stats().Drops() != 2 {
		t.Errorf("Expected 2 drops, got %d", buf.Stats().Drops())
	}
}

func TestDropNewestPolicy(t *testing.T) {
	buf, err := New[int](2, WithOverflowPolicy[int](DropNewest))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_ = buf.Write(1)
	_ = buf.Write(2)
	_ = buf.Write(3) // dropped

	snapshot := buf.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != 1 || snapshot[1] != 2 {
		t.Errorf("Expected [1 2], got %v", snapshot)
	}
}

func TestDropCallback(t *testing.T) {
	var dropped []int
	buf, err := New[int](2, WithDropCallback[int](func(item int) {
		dropped = append(dropped, item)
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i := 1; i <= 4; i++ {
		_ = buf.Write(i)
	}

	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Errorf("Expected dropped [1 2], got %v", dropped)
	}
}

// TestCapacityBound verifies size never exceeds capacity across a long write
// sequence, and the retained items are the most recent ones by call order.
func TestCapacityBound(t *testing.T) {
	const capacity = 10
	buf, _ := New[int](capacity)

	for i := 0; i < 1001; i++ {
		_ = buf.Write(i)
		if buf.Size() > capacity {
			t.Fatalf("Capacity bound violated at write %d: size %d", i, buf.Size())
		}
	}

	snapshot := buf.Snapshot()
	if len(snapshot) != capacity {
		t.Fatalf("Expected %d items, got %d", capacity, len(snapshot))
	}
	if snapshot[0] != 1001-capacity {
		t.Errorf("Expected oldest retained item %d, got %d", 1001-capacity, snapshot[0])
	}
	if snapshot[capacity-1] != 1000 {
		t.Errorf("Expected newest item 1000, got %d", snapshot[capacity-1])
	}
}

// TestSnapshotIsPure verifies Snapshot does not mutate the buffer and
// successive snapshots are identical when no writes intervene.
func TestSnapshotIsPure(t *testing.T) {
	buf, _ := New[int](5)
	for i := 1; i <= 3; i++ {
		_ = buf.Write(i)
	}

	first := buf.Snapshot()
	second := buf.Snapshot()

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("Expected 3 items in both snapshots, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Snapshots differ at %d: %d vs %d", i, first[i], second[i])
		}
	}
	if buf.Size() != 3 {
		t.Errorf("Expected size unchanged after snapshots, got %d", buf.Size())
	}
}

func TestPeek(t *testing.T) {
	buf, _ := New[string](3)

	if _, ok := buf.Peek(); ok {
		t.Error("Expected peek on empty buffer to fail")
	}

	_ = buf.Write("a")
	_ = buf.Write("b")

	item, ok := buf.Peek()
	if !ok || item != "a" {
		t.Errorf("Expected 'a', got %q, ok: %t", item, ok)
	}
	if buf.Size() != 2 {
		t.Errorf("Expected peek to not remove, size %d", buf.Size())
	}
}

func TestClear(t *testing.T) {
	buf, _ := New[int](3)
	_ = buf.Write(1)
	_ = buf.Write(2)

	buf.Clear()

	if !buf.IsEmpty() {
		t.Error("Expected empty buffer after clear")
	}
	if buf.Stats().CurrentSize() != 0 {
		t.Errorf("Expected stats size 0, got %d", buf.Stats().CurrentSize())
	}
}

func TestReplace(t *testing.T) {
	buf, _ := New[int](3)
	_ = buf.Write(99)

	buf.Replace([]int{1, 2})
	snapshot := buf.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != 1 || snapshot[1] != 2 {
		t.Errorf("Expected [1 2], got %v", snapshot)
	}

	// Restoring more items than capacity keeps only the newest ones
	buf.Replace([]int{1, 2, 3, 4, 5})
	snapshot = buf.Snapshot()
	if len(snapshot) != 3 || snapshot[0] != 3 || snapshot[2] != 5 {
		t.Errorf("Expected [3 4 5], got %v", snapshot)
	}

	// Writes continue correctly after a full restore
	_ = buf.Write(6)
	snapshot = buf.Snapshot()
	if len(snapshot) != 3 || snapshot[0] != 4 || snapshot[2] != 6 {
		t.Errorf("Expected [4 5 6], got %v", snapshot)
	}
}

func TestMinimumCapacity(t *testing.T) {
	buf, err := New[int](0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if buf.Capacity() != 1 {
		t.Errorf("Expected minimum capacity 1, got %d", buf.Capacity())
	}
}

func TestConcurrentWrites(t *testing.T) {
	buf, _ := New[int](100)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = buf.Write(g*100 + i)
			}
		}(g)
	}
	wg.Wait()

	if buf.Size() != 100 {
		t.Errorf("Expected size 100, got %d", buf.Size())
	}
	if buf.Stats().Writes() != 1000 {
		t.Errorf("Expected 1000 writes, got %d", buf.Stats().Writes())
	}
	if buf.Stats().Drops() != 900 {
		t.Errorf("Expected 900 drops, got %d", buf.Stats().Drops())
	}
}

func TestOverflowPolicyString(t *testing.T) {
	tests := []struct {
		policy   OverflowPolicy
		expected string
	}{
		{DropOldest, "DropOldest"},
		{DropNewest, "DropNewest"},
		{OverflowPolicy(9), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.policy.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func ExampleBuffer() {
	buf, _ := New[string](2)
	_ = buf.Write("first")
	_ = buf.Write("second")
	_ = buf.Write("third") // evicts "first"

	for _, item := range buf.Snapshot() {
		fmt.Println(item)
	}
	// Output:
	// second
	// third
}
