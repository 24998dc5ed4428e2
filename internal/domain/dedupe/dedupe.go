// Package dedupe maps idempotency keys to the run they first created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper tracks idempotency keys so a resubmitted manifest resolves to the
// run created by its first submission.
type Deduper interface {
	// Claim atomically binds key to runID unless key is already bound.
	// It returns the run bound to key and whether this call created the binding.
	Claim(ctx context.Context, key, runID string) (string, bool)

	// Lookup returns the run bound to key, if any.
	Lookup(ctx context.Context, key string) (string, bool)

	// Release forgets key so it can be claimed again. Used when a claimed
	// run could not be queued.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key   string
	runID string
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest when
// bounded. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.keys = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		return el.Value.(*entry).runID, false
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.keys[key] = d.order.PushBack(&entry{key: key, runID: runID})
	d.size.Add(1)
	return runID, true
}

func (d *inMemoryDeduper) Lookup(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.keys[key]
	if !ok {
		return "", false
	}
	return el.Value.(*entry).runID, true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.keys, front.Value.(*entry).key)
	d.size.Add(-1)
}

// Size returns the current number of tracked keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
