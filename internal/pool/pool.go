// Package pool implements the two entry pools: rpool (entries mid-flight on
// a connection, keyed by file descriptor) and apool (entries the scheduler
// has armed, keyed by assigned id). Callers must always acquire rpool's
// lock before apool's when both are needed, never the reverse — see
// spec.md §4.2 and the lock-order note in DESIGN.md.
package pool

import (
	"sync"

	"github.com/usched-go/usched/internal/domain"
)

// Pool is a mutex-guarded map of entries plus a slice recording insertion
// order, keyed by an arbitrary comparable key (fd for rpool, id for
// apool). Iteration is safe under concurrent mutation: Iterate snapshots
// the key order under lock before invoking the callback outside it.
type Pool[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*domain.Entry
	order   []K
}

// New returns an empty pool.
func New[K comparable]() *Pool[K] {
	return &Pool[K]{entries: make(map[K]*domain.Entry)}
}

// Insert adds e at the head of the pool under key. Inserting an existing
// key replaces its entry but keeps its original position, matching the
// original's "insert at head only for genuinely new keys" behavior.
func (p *Pool[K]) Insert(key K, e *domain.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[key]; !exists {
		p.order = append([]K{key}, p.order...)
	}
	p.entries[key] = e
}

// RemoveByID deletes the entry under key, if present, and reports whether
// anything was removed.
func (p *Pool[K]) RemoveByID(key K) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(key)
}

func (p *Pool[K]) removeLocked(key K) bool {
	if _, exists := p.entries[key]; !exists {
		return false
	}
	delete(p.entries, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// PopByID removes and returns the entry under key, if present.
func (p *Pool[K]) PopByID(key K) (*domain.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	p.removeLocked(key)
	return e, true
}

// SearchByID returns the entry under key without removing it.
func (p *Pool[K]) SearchByID(key K) (*domain.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	return e, ok
}

// WithLock looks up the entry under key and invokes fn on it while still
// holding the pool's lock, reporting whether key was found — used to update
// an entry's fields (e.g. its execution status) atomically with respect to
// any concurrent Iterate/SearchByID/RemoveByID on the same pool.
func (p *Pool[K]) WithLock(key K, fn func(e *domain.Entry)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Count returns the number of entries currently held.
func (p *Pool[K]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Iterate calls fn for every entry in insertion order (most recently
// inserted first), stopping early if fn returns false. The key/entry pairs
// are snapshotted under lock before fn is invoked, so fn may safely call
// back into the pool (e.g. to remove the entry it was just given) without
// deadlocking.
func (p *Pool[K]) Iterate(fn func(key K, e *domain.Entry) bool) {
	p.mu.Lock()
	keys := make([]K, len(p.order))
	copy(keys, p.order)
	snapshot := make([]*domain.Entry, len(keys))
	for i, k := range keys {
		snapshot[i] = p.entries[k]
	}
	p.mu.Unlock()

	for i, k := range keys {
		e := snapshot[i]
		if e == nil {
			continue
		}
		if !fn(k, e) {
			return
		}
	}
}

// Keys returns a snapshot of every key currently held, in insertion order.
func (p *Pool[K]) Keys() []K {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]K, len(p.order))
	copy(out, p.order)
	return out
}
