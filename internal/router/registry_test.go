package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func newTestSlabEntry() SlabEntry {
	return SlabEntry{
		SlabID:      uuid.New(),
		OracleID:    "BTC-USD",
		IMRBps:      1000,
		MMRBps:      500,
		MaxExposure: big.NewInt(1_000_000),
	}
}

func TestRegistryRegisterFindDeactivate(t *testing.T) {
	r := NewRegistry()
	entry := newTestSlabEntry()

	if err := r.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(entry); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	found, ok := r.Find(entry.SlabID)
	if !ok {
		t.Fatalf("expected to find registered slab")
	}
	if found.OracleID != "BTC-USD" {
		t.Fatalf("oracle id = %q, want BTC-USD", found.OracleID)
	}

	if err := r.Deactivate(entry.SlabID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, ok := r.Find(entry.SlabID); ok {
		t.Fatalf("expected deactivated slab to no longer be findable")
	}
}

func TestRegistryUpdateRiskParams(t *testing.T) {
	r := NewRegistry()
	entry := newTestSlabEntry()
	if err := r.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.UpdateRiskParams(entry.SlabID, 2000, 1000); err != nil {
		t.Fatalf("update risk params: %v", err)
	}
	found, _ := r.Find(entry.SlabID)
	if found.IMRBps != 2000 || found.MMRBps != 1000 {
		t.Fatalf("risk params = (%d, %d), want (2000, 1000)", found.IMRBps, found.MMRBps)
	}
}

func TestRegistryActiveReturnsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	a, b := newTestSlabEntry(), newTestSlabEntry()
	r.Register(a)
	r.Register(b)

	active := r.Active()
	if len(active) != 2 || active[0] != a.SlabID || active[1] != b.SlabID {
		t.Fatalf("active = %v, want [%v %v]", active, a.SlabID, b.SlabID)
	}
}

func TestRegistryFullRejectsBeyondCapacity(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxSlabsInRegistry; i++ {
		if err := r.Register(newTestSlabEntry()); err != nil {
			t.Fatalf("register #%d: %v", i, err)
		}
	}
	if err := r.Register(newTestSlabEntry()); err == nil {
		t.Fatalf("expected registry full error at capacity %d", MaxSlabsInRegistry)
	}
}
