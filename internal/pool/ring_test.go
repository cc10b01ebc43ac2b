package pool

import "testing"

func TestTradeRingFIFO(t *testing.T) {
	r := NewTradeRing[int](3)
	if !r.Enqueue(1) || !r.Enqueue(2) || !r.Enqueue(3) {
		t.Fatalf("expected 3 enqueues to succeed on a cap-3 ring")
	}
	if r.Enqueue(4) {
		t.Fatalf("expected enqueue to fail once the ring is full")
	}

	v, ok := r.Dequeue()
	if !ok || v != 1 {
		t.Fatalf("expected FIFO order, got %d ok=%v", v, ok)
	}
	if !r.Enqueue(4) {
		t.Fatalf("expected enqueue to succeed after a dequeue freed a slot")
	}

	for i, want := range []int{2, 3, 4} {
		got, ok := r.Dequeue()
		if !ok || got != want {
			t.Fatalf("step %d: expected %d, got %d ok=%v", i, want, got, ok)
		}
	}
	if _, ok := r.Dequeue(); ok {
		t.Fatalf("expected empty ring to report false")
	}
}

func TestTradeRingNonPowerOfTwoSize(t *testing.T) {
	r := NewTradeRing[int](5)
	for i := 0; i < 5; i++ {
		if !r.Enqueue(i) {
			t.Fatalf("expected enqueue %d to succeed on a 5-slot ring", i)
		}
	}
	if r.Len() != 5 {
		t.Fatalf("expected len 5, got %d", r.Len())
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Dequeue()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d ok=%v", i, v, ok)
		}
	}
}
