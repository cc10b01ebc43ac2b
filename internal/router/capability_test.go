package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func TestCapabilityTTLClampedToMax(t *testing.T) {
	user, slab, mint := uuid.New(), uuid.New(), uuid.New()
	cap := NewCapability(1, user, slab, mint, big.NewInt(1000), 0, MaxCapTTLMs*10)
	if cap.ExpiryTs != MaxCapTTLMs {
		t.Fatalf("expiry = %d, want clamp to %d", cap.ExpiryTs, MaxCapTTLMs)
	}
}

func TestCapabilityDebitValidatesScopeExpiryRemaining(t *testing.T) {
	user, slab, mint := uuid.New(), uuid.New(), uuid.New()
	cap := NewCapability(1, user, slab, mint, big.NewInt(100), 0, 1000)

	if _, err := cap.Debit(big.NewInt(10), uuid.New(), slab, mint, 0); err == nil {
		t.Fatalf("expected scope mismatch on wrong user")
	}
	if _, err := cap.Debit(big.NewInt(10), user, slab, mint, 5000); err == nil {
		t.Fatalf("expected expiry failure past ExpiryTs")
	}
	if _, err := cap.Debit(big.NewInt(200), user, slab, mint, 0); err == nil {
		t.Fatalf("expected insufficient remaining failure")
	}

	remaining, err := cap.Debit(big.NewInt(60), user, slab, mint, 0)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if remaining.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("remaining = %s, want 40", remaining)
	}
	if cap.Nonce != 1 {
		t.Fatalf("nonce = %d, want 1", cap.Nonce)
	}
}

func TestCapabilityBurnRejectsFurtherDebits(t *testing.T) {
	user, slab, mint := uuid.New(), uuid.New(), uuid.New()
	cap := NewCapability(1, user, slab, mint, big.NewInt(100), 0, 1000)
	cap.Burn()
	if _, err := cap.Debit(big.NewInt(1), user, slab, mint, 0); err == nil {
		t.Fatalf("expected debit on burned capability to fail")
	}
}

func TestCapabilityRefIsIndependentSnapshot(t *testing.T) {
	user, slab, mint := uuid.New(), uuid.New(), uuid.New()
	cap := NewCapability(1, user, slab, mint, big.NewInt(100), 0, 1000)

	ref := cap.Ref()
	cap.Debit(big.NewInt(40), user, slab, mint, 0)

	if ref.Remaining.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("ref.Remaining mutated by later Debit: got %s, want unchanged 100", ref.Remaining)
	}
	if cap.Remaining.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("cap.Remaining = %s, want 60", cap.Remaining)
	}
}
