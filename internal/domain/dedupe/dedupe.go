// Package dedupe tracks the last payload revision known to be in the remote
// store for each draft key, so writing the same version twice can be skipped.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// defaultMaxSize bounds the number of tracked keys.
const defaultMaxSize = 1024

// Deduper remembers which payload revision was last synced per key.
type Deduper interface {
	// SeenAndRecord atomically checks whether fp is the fingerprint last
	// recorded for key. It returns true if so; otherwise it records fp as
	// the key's latest fingerprint and returns false.
	SeenAndRecord(ctx context.Context, key string, fp uint64) bool

	// Unrecord forgets fp for key, allowing the same content to be retried.
	// It is a no-op when the key has since recorded a different fingerprint.
	Unrecord(ctx context.Context, key string, fp uint64)

	// Forget drops everything known about key.
	Forget(ctx context.Context, key string)

	Size() int64
}

// node is an entry of the recency list.
type node struct {
	key        string
	fp         uint64
	prev, next *node
}

func (n *node) reset() {
	n.key = ""
	n.fp = 0
	n.prev = nil
	n.next = nil
}

// inMemoryDeduper keeps fingerprints in a map plus a doubly linked list
// ordered by recency. When bounded, the least recently recorded key is evicted.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node // most recently recorded
	tail     *node // least recently recorded
	maxSize  int   // 0 or negative means unbounded
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		nodePool: sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string, fp uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		if n.fp == fp {
			return true
		}
		n.fp = fp
		d.moveToFront(n)
		return false
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.key = key
	n.fp = fp
	d.pushFront(n)
	d.seen[key] = n
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string, fp uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok && n.fp == fp {
		d.remove(n)
	}
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		d.remove(n)
	}
}

// Size returns the number of tracked keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) pushFront(n *node) {
	n.prev = nil
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) moveToFront(n *node) {
	if d.head == n {
		return
	}
	d.unlink(n)
	d.pushFront(n)
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) remove(n *node) {
	d.unlink(n)
	delete(d.seen, n.key)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if d.tail != nil {
		d.remove(d.tail)
	}
}
