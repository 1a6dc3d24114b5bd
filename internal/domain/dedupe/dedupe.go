// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen frame IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	// This is the ONLY method for deduplication - thread-safe and atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	// This should only be used when a frame was marked as seen but failed
	// to be processed (e.g., queue backpressure).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// node represents a single entry in the linked list
type node struct {
	id   string
	next *node
}

// reset clears the node state for reuse
func (n *node) reset() {
	n.id = ""
	n.next = nil
}

// inMemoryDeduper implements Deduper with a bounded in-memory window.
// For bounded mode (maxSize > 0): a map plus a singly linked list ordered
// oldest to newest, so eviction pops the head in O(1); nodes come from a
// sync.Pool. For unbounded mode (maxSize <= 0): a plain map, no eviction.
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[string]*node // id -> node pointer for bounded mode, nil for unbounded
	head     *node            // oldest recorded id, first to be evicted
	tail     *node            // newest recorded id
	maxSize  int              // maximum number of IDs to keep in memory (0 or negative = UNBOUNDED)
	size     atomic.Int64     // current number of entries (atomic)
	nodePool sync.Pool        // pool for reusing node objects
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 100000, // default max size
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	// Initialize the seen map
	d.seen = make(map[string]*node)

	// Initialize sync.Pool for node reuse in bounded mode
	if d.maxSize > 0 {
		d.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
// This is the ONLY method for deduplication.
// Returns true if id was already seen, false if it was newly recorded.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Check if already seen
	if _, exists := d.seen[id]; exists {
		return true // Already seen
	}

	if d.maxSize > 0 {
		// BOUNDED MODE: evict the oldest entry before adding the new one
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}

		// Append new node at the tail
		n := d.nodePool.Get().(*node)
		n.id = id
		n.next = nil

		if d.tail != nil {
			d.tail.next = n
		} else {
			d.head = n
		}
		d.tail = n
		d.seen[id] = n
	} else {
		// UNBOUNDED MODE: Just use map
		d.seen[id] = nil
	}
	d.size.Add(1)
	return false // Newly recorded
}

// Unrecord removes an ID from the seen list, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxSize > 0 {
		// BOUNDED MODE: Remove from linked list and map.
		// The predecessor walk is O(n) but Unrecord only runs on the
		// backpressure rollback path, never per frame.
		n, exists := d.seen[id]
		if !exists {
			return
		}
		delete(d.seen, id)

		var prev *node
		if d.head == n {
			d.head = n.next
		} else {
			prev = d.head
			for prev != nil && prev.next != n {
				prev = prev.next
			}
			if prev != nil {
				prev.next = n.next
			}
		}
		if d.tail == n {
			d.tail = prev // nil when n was also the head
		}

		// Return node to pool
		n.reset()
		d.nodePool.Put(n)

		d.size.Add(-1)
	} else {
		// UNBOUNDED MODE: Just remove from map
		if _, exists := d.seen[id]; exists {
			delete(d.seen, id)
			d.size.Add(-1)
		}
	}
}

// evictOldest removes the head of the list, the least recently recorded id.
// Must be called with d.mu.Lock() held.
func (d *inMemoryDeduper) evictOldest() {
	n := d.head
	if n == nil {
		return
	}

	d.head = n.next
	if d.head == nil {
		d.tail = nil
	}

	delete(d.seen, n.id)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
