package pool

import "sync/atomic"

// TradeRing is a cache-line-padded SPSC ring buffer, used for the fixed
// MaxTrades trade print backlog. Same padded head/tail layout and
// generic element type as a retire ring, generalized from *Order to any
// trade-record type.
type TradeRing[T any] struct {
	head  uint64
	_pad1 [56]byte
	tail  uint64
	_pad2 [56]byte
	buf   []T
}

// NewTradeRing returns a ring of the given fixed size. Unlike a
// power-of-two-sized retire ring that masks, MaxTrades and the other pool
// capacities here are arbitrary round numbers, so indexing uses modulo
// instead of a bitmask.
func NewTradeRing[T any](size uint64) *TradeRing[T] {
	return &TradeRing[T]{buf: make([]T, size)}
}

// Enqueue appends v, returning false if the ring is full.
func (r *TradeRing[T]) Enqueue(v T) bool {
	h := r.head
	t := atomic.LoadUint64(&r.tail)
	n := uint64(len(r.buf))
	if h-t == n {
		return false
	}
	r.buf[h%n] = v
	atomic.StoreUint64(&r.head, h+1)
	return true
}

// Dequeue removes and returns the oldest entry, or the zero value and false
// if the ring is empty.
func (r *TradeRing[T]) Dequeue() (T, bool) {
	var zero T
	t := r.tail
	h := atomic.LoadUint64(&r.head)
	if t == h {
		return zero, false
	}
	n := uint64(len(r.buf))
	v := r.buf[t%n]
	r.buf[t%n] = zero
	atomic.StoreUint64(&r.tail, t+1)
	return v, true
}

// Len returns the number of entries currently queued.
func (r *TradeRing[T]) Len() int {
	h := atomic.LoadUint64(&r.head)
	t := atomic.LoadUint64(&r.tail)
	return int(h - t)
}

// Cap returns the ring's fixed capacity.
func (r *TradeRing[T]) Cap() int { return len(r.buf) }
