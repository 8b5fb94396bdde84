package frontier

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/seospider/seospider/internal/types"
)

const (
	// Bloom filter sized for ~10M URLs with 1% false positive rate.
	bloomFilterSize = 10_000_000
	bloomFPRate     = 0.01
)

// Frontier is the deduplicated FIFO queue driving breadth-first traversal.
// A URL enters the frontier at most once for the lifetime of a crawl: the
// seen-check and the append are one atomic step under the mutex.
//
// The bloom filter is a cheap negative test in front of the exact set; the
// map stays authoritative so a false positive can never drop a URL.
type Frontier struct {
	mu    sync.Mutex
	queue []types.FrontierEntry
	bloom *bloom.BloomFilter
	seen  map[string]struct{}
}

// New creates an empty frontier.
func New() *Frontier {
	return &Frontier{
		bloom: bloom.NewWithEstimates(bloomFilterSize, bloomFPRate),
		seen:  make(map[string]struct{}),
	}
}

// Enqueue adds a URL at the given depth unless it was ever enqueued before.
// Returns true if the entry was added.
func (f *Frontier) Enqueue(url string, depth int) bool {
	if url == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	urlBytes := []byte(url)
	if f.bloom.Test(urlBytes) {
		if _, ok := f.seen[url]; ok {
			return false
		}
	}

	f.bloom.Add(urlBytes)
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, types.FrontierEntry{URL: url, Depth: depth})
	return true
}

// Dequeue pops the oldest pending entry, preserving FIFO order.
func (f *Frontier) Dequeue() (types.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return types.FrontierEntry{}, false
	}

	entry := f.queue[0]
	f.queue = f.queue[1:]
	return entry, true
}

// Seen reports whether a URL was ever enqueued.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Size returns the number of pending entries.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Discovered returns the total number of distinct URLs ever enqueued.
func (f *Frontier) Discovered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
