package frontier

import (
	"fmt"
	"sync"
	"testing"
)

func TestEnqueueDedup(t *testing.T) {
	f := New()

	if !f.Enqueue("https://example.com/page", 0) {
		t.Fatal("first Enqueue() = false, want true")
	}
	if f.Enqueue("https://example.com/page", 1) {
		t.Error("second Enqueue() = true, want false")
	}
	if f.Size() != 1 {
		t.Errorf("Size() = %d, want 1", f.Size())
	}
}

func TestDequeueFIFO(t *testing.T) {
	f := New()
	f.Enqueue("https://example.com/a", 0)
	f.Enqueue("https://example.com/b", 1)
	f.Enqueue("https://example.com/c", 2)

	entry, ok := f.Dequeue()
	if !ok || entry.URL != "https://example.com/a" {
		t.Errorf("first Dequeue() = %v, want /a", entry.URL)
	}
	entry, _ = f.Dequeue()
	if entry.URL != "https://example.com/b" || entry.Depth != 1 {
		t.Errorf("second Dequeue() = %v depth %d, want /b depth 1", entry.URL, entry.Depth)
	}
}

func TestDequeueEmpty(t *testing.T) {
	f := New()
	if _, ok := f.Dequeue(); ok {
		t.Error("Dequeue() on empty frontier = true, want false")
	}
}

func TestSeenNeverShrinks(t *testing.T) {
	f := New()
	f.Enqueue("https://example.com/page", 0)
	f.Dequeue()

	if !f.Seen("https://example.com/page") {
		t.Error("Seen() = false after dequeue, want true")
	}
	if f.Enqueue("https://example.com/page", 0) {
		t.Error("Enqueue() after dequeue = true, want false")
	}
}

func TestConcurrentEnqueueExactlyOnce(t *testing.T) {
	f := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Enqueue(fmt.Sprintf("https://example.com/page%d", j), 0)
			}
		}(i)
	}
	wg.Wait()

	if f.Size() != 100 {
		t.Errorf("Size() = %d after concurrent enqueues, want 100", f.Size())
	}
	if f.Discovered() != 100 {
		t.Errorf("Discovered() = %d, want 100", f.Discovered())
	}
}

func TestEmptyURLRejected(t *testing.T) {
	f := New()
	if f.Enqueue("", 0) {
		t.Error("Enqueue(\"\") = true, want false")
	}
}
