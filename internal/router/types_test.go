package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func TestVaultPledgeUnpledgeTracksAvailable(t *testing.T) {
	v := newVault(uuid.New())
	v.Deposit(big.NewInt(1000))

	if av := v.Available(); av.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("available = %s, want 1000", av)
	}

	if err := v.Pledge(big.NewInt(400)); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if av := v.Available(); av.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("available after pledge = %s, want 600", av)
	}

	if err := v.Pledge(big.NewInt(700)); err == nil {
		t.Fatalf("expected pledge beyond available to fail")
	}

	v.Unpledge(big.NewInt(400))
	if av := v.Available(); av.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("available after unpledge = %s, want 1000", av)
	}
}

func TestVaultWithdrawRejectsBeyondAvailable(t *testing.T) {
	v := newVault(uuid.New())
	v.Deposit(big.NewInt(100))
	if err := v.Pledge(big.NewInt(60)); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	if err := v.Withdraw(big.NewInt(50)); err == nil {
		t.Fatalf("expected withdraw beyond available (40) to fail")
	}
	if err := v.Withdraw(big.NewInt(40)); err != nil {
		t.Fatalf("withdraw within available: %v", err)
	}
}

func TestEscrowCreditDebitFreeze(t *testing.T) {
	es := newEscrow(uuid.New(), uuid.New(), uuid.New())
	es.Credit(big.NewInt(500))
	if es.Balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance = %s, want 500", es.Balance)
	}

	if err := es.Debit(big.NewInt(600)); err == nil {
		t.Fatalf("expected debit beyond balance to fail")
	}
	if err := es.Debit(big.NewInt(200)); err != nil {
		t.Fatalf("debit within balance: %v", err)
	}
	if es.Nonce != 2 {
		t.Fatalf("nonce = %d, want 2 (1 credit + 1 debit)", es.Nonce)
	}

	es.Freeze()
	if err := es.Debit(big.NewInt(1)); err == nil {
		t.Fatalf("expected debit on frozen escrow to fail")
	}
	es.Unfreeze()
	if err := es.Debit(big.NewInt(1)); err != nil {
		t.Fatalf("debit after unfreeze: %v", err)
	}
}

func TestPortfolioExposureAndMargin(t *testing.T) {
	p := newPortfolio(uuid.New())

	if err := p.UpdateExposure(1, 2, 50); err != nil {
		t.Fatalf("update exposure: %v", err)
	}
	if got := p.Exposure(1, 2); got != 50 {
		t.Fatalf("exposure = %d, want 50", got)
	}

	if err := p.UpdateExposure(1, 2, 0); err != nil {
		t.Fatalf("clear exposure: %v", err)
	}
	if got := p.Exposure(1, 2); got != 0 {
		t.Fatalf("exposure after clear = %d, want 0", got)
	}

	p.UpdateEquity(big.NewInt(1000))
	p.UpdateMargin(big.NewInt(300), big.NewInt(150))
	if !p.HasSufficientMargin() {
		t.Fatalf("expected equity 1000 >= IM 300 to be sufficient")
	}
	if fc := p.FreeCollateral; fc.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("free collateral = %s, want 700", fc)
	}

	p.UpdateEquity(big.NewInt(100))
	if p.HasSufficientMargin() {
		t.Fatalf("expected equity 100 < IM 300 to be insufficient")
	}
	if p.IsAboveMaintenance() {
		t.Fatalf("expected equity 100 < MM 150 to be below maintenance")
	}
}
