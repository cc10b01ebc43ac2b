package pool

import (
	"testing"

	"percolator/internal/common"
)

type item struct {
	Value    int
	nextFree uint32
}

func (i *item) NextFree() uint32     { return i.nextFree }
func (i *item) SetNextFree(n uint32) { i.nextFree = n }

func TestAllocFreeReuse(t *testing.T) {
	p := New[item, *item](2, nil)

	a := p.Alloc()
	b := p.Alloc()
	if a == common.None || b == common.None {
		t.Fatalf("expected two successful allocs, got %d and %d", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct indices, got %d twice", a)
	}
	if p.Alloc() != common.None {
		t.Fatalf("expected pool exhausted on third alloc")
	}

	p.Free(a)
	if p.Used() != 1 {
		t.Fatalf("expected 1 used after freeing one of two, got %d", p.Used())
	}

	c := p.Alloc()
	if c != a {
		t.Fatalf("expected freed index %d to be reused, got %d", a, c)
	}
}

func TestGetOutOfRange(t *testing.T) {
	p := New[item, *item](1, nil)
	if p.Get(5) != nil {
		t.Fatalf("expected nil for out-of-range Get")
	}
}

func TestInitCallback(t *testing.T) {
	p := New[item, *item](3, func(i *item) { i.Value = 7 })
	idx := p.Alloc()
	if p.Get(idx).Value != 7 {
		t.Fatalf("expected init callback to run before alloc, got %d", p.Get(idx).Value)
	}
}

func TestIndicesStableAcrossAllocs(t *testing.T) {
	p := New[item, *item](4, nil)
	idx := p.Alloc()
	p.Get(idx).Value = 42
	_ = p.Alloc()
	if p.Get(idx).Value != 42 {
		t.Fatalf("expected index %d's value to remain stable, got %d", idx, p.Get(idx).Value)
	}
}
