// Package pool implements the fixed-capacity freelist allocator every Slab
// pool (orders, positions, reservations, slices, aggressor entries) is built
// from: a flat array plus an intrusive singly-linked free list, giving O(1)
// alloc/free and indices that never relocate for the lifetime of the slab.
package pool

import "percolator/internal/common"

// Linkable is implemented by a pointer to a pool element so the pool can
// thread the free list through the element storage itself, with no side
// allocation.
type Linkable interface {
	// NextFree returns the index stashed in this (currently free) slot.
	NextFree() uint32
	// SetNextFree stashes the next-free index into this slot.
	SetNextFree(next uint32)
}

// Pool is a fixed-capacity freelist of N elements of type T, addressed by
// pointers satisfying Linkable (PT is always *T in practice).
type Pool[T any, PT interface {
	*T
	Linkable
}] struct {
	items    []T
	freeHead uint32
	used     uint32
	cap      uint32
}

// New returns a Pool with capacity n, all slots initially free and
// zero-initialized by init (e.g. for types needing non-nil *big.Int fields).
func New[T any, PT interface {
	*T
	Linkable
}](n int, init func(*T)) *Pool[T, PT] {
	p := &Pool[T, PT]{
		items: make([]T, n),
		cap:   uint32(n),
	}
	for i := range p.items {
		if init != nil {
			init(&p.items[i])
		}
		var next uint32
		if i == n-1 {
			next = common.None
		} else {
			next = uint32(i + 1)
		}
		PT(&p.items[i]).SetNextFree(next)
	}
	if n == 0 {
		p.freeHead = common.None
	}
	return p
}

// Cap returns the pool's fixed capacity.
func (p *Pool[T, PT]) Cap() uint32 { return p.cap }

// Used returns the number of currently allocated slots.
func (p *Pool[T, PT]) Used() uint32 { return p.used }

// Full reports whether the pool has no free slots left.
func (p *Pool[T, PT]) Full() bool { return p.used >= p.cap }

// Alloc reserves a slot and returns its stable index, or common.None if the
// pool is full.
func (p *Pool[T, PT]) Alloc() uint32 {
	if p.used >= p.cap || p.freeHead == common.None {
		return common.None
	}
	idx := p.freeHead
	p.freeHead = PT(&p.items[idx]).NextFree()
	p.used++
	return idx
}

// Free releases idx back to the pool. Freeing an out-of-range index is a
// no-op — callers are expected to track liveness of the indices they hold
// (e.g. via a Used flag on the element), mirroring original_source's
// is_used() guard.
func (p *Pool[T, PT]) Free(idx uint32) {
	if idx >= p.cap {
		return
	}
	PT(&p.items[idx]).SetNextFree(p.freeHead)
	p.freeHead = idx
	if p.used > 0 {
		p.used--
	}
}

// Get returns a pointer to the element at idx for in-place mutation. Callers
// must only pass indices they know to be currently allocated.
func (p *Pool[T, PT]) Get(idx uint32) *T {
	if idx >= p.cap {
		return nil
	}
	return &p.items[idx]
}
