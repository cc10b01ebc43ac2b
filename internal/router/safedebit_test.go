package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func TestSafeDebitHappyPathAppliesBothDebitsAndBumpsNonces(t *testing.T) {
	r := New()
	user, slabID, mint := uuid.New(), uuid.New(), uuid.New()

	if err := r.Deposit(mint, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := r.Pledge(user, slabID, mint, big.NewInt(500)); err != nil {
		t.Fatalf("pledge: %v", err)
	}

	cap := r.MintCapability(user, slabID, mint, big.NewInt(300), 10_000)

	remaining, err := r.SafeDebit(cap.RouteID, user, slabID, mint, big.NewInt(120))
	if err != nil {
		t.Fatalf("safe debit: %v", err)
	}
	if remaining.Cmp(big.NewInt(180)) != 0 {
		t.Fatalf("cap remaining = %s, want 180", remaining)
	}

	es := r.escrowFor(user, slabID, mint)
	if es.Balance.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("escrow balance = %s, want 380", es.Balance)
	}
	if es.Nonce != 2 { // 1 credit from Pledge + 1 debit from SafeDebit
		t.Fatalf("escrow nonce = %d, want 2", es.Nonce)
	}
}

func TestSafeDebitExhaustsCapabilityBurnsIt(t *testing.T) {
	r := New()
	user, slabID, mint := uuid.New(), uuid.New(), uuid.New()
	r.Deposit(mint, big.NewInt(100))
	r.Pledge(user, slabID, mint, big.NewInt(100))
	cap := r.MintCapability(user, slabID, mint, big.NewInt(100), 10_000)

	if _, err := r.SafeDebit(cap.RouteID, user, slabID, mint, big.NewInt(100)); err != nil {
		t.Fatalf("safe debit: %v", err)
	}
	if !cap.Burned {
		t.Fatalf("expected capability to burn after remaining hits zero")
	}
	if _, err := r.SafeDebit(cap.RouteID, user, slabID, mint, big.NewInt(1)); err == nil {
		t.Fatalf("expected debit against burned capability to fail")
	}
}

func TestSafeDebitRejectsAmountExceedingCapabilityRemaining(t *testing.T) {
	r := New()
	user, slabID, mint := uuid.New(), uuid.New(), uuid.New()
	r.Deposit(mint, big.NewInt(1000))
	r.Pledge(user, slabID, mint, big.NewInt(1000))
	cap := r.MintCapability(user, slabID, mint, big.NewInt(50), 10_000)

	if _, err := r.SafeDebit(cap.RouteID, user, slabID, mint, big.NewInt(100)); err == nil {
		t.Fatalf("expected charge-exceeds-max error")
	}
}

func TestSafeDebitRejectsFrozenEscrow(t *testing.T) {
	r := New()
	user, slabID, mint := uuid.New(), uuid.New(), uuid.New()
	r.Deposit(mint, big.NewInt(1000))
	r.Pledge(user, slabID, mint, big.NewInt(1000))
	cap := r.MintCapability(user, slabID, mint, big.NewInt(500), 10_000)

	r.escrowFor(user, slabID, mint).Freeze()
	if _, err := r.SafeDebit(cap.RouteID, user, slabID, mint, big.NewInt(10)); err == nil {
		t.Fatalf("expected frozen-escrow debit to fail")
	}
}

func TestSafeDebitUnknownRouteFails(t *testing.T) {
	r := New()
	if _, err := r.SafeDebit(999, uuid.New(), uuid.New(), uuid.New(), big.NewInt(1)); err == nil {
		t.Fatalf("expected unknown route to fail")
	}
}

func TestDebitCallbackAdaptsSafeDebit(t *testing.T) {
	r := New()
	user, slabID, mint := uuid.New(), uuid.New(), uuid.New()
	r.Deposit(mint, big.NewInt(100))
	r.Pledge(user, slabID, mint, big.NewInt(100))
	cap := r.MintCapability(user, slabID, mint, big.NewInt(100), 10_000)

	remaining, err := r.DebitCallback(cap.Ref(), big.NewInt(40))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if remaining.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("remaining = %s, want 60", remaining)
	}
}
