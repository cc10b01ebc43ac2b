package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"percolator/internal/common"
	"percolator/internal/slab"
)

func TestLiquidateUserRejectsWhenAboveMaintenance(t *testing.T) {
	r := New()
	user := uuid.New()
	p := r.Portfolio(user)
	p.UpdateEquity(big.NewInt(1000))
	p.UpdateMargin(big.NewInt(300), big.NewInt(150))

	if _, err := r.LiquidateUser(user, 100_000, nil, nil); err == nil {
		t.Fatalf("expected liquidation to be rejected while above maintenance")
	}
}

func TestLiquidateUserRejectsWithinGraceWindow(t *testing.T) {
	r := New()
	user := uuid.New()
	p := r.Portfolio(user)
	p.UpdateEquity(big.NewInt(10))
	p.UpdateMargin(big.NewInt(300), big.NewInt(150))

	if _, err := r.LiquidateUser(user, LiquidationGraceMs-1, nil, nil); err == nil {
		t.Fatalf("expected liquidation to be rejected inside the grace window")
	}
}

func TestLiquidateUserClosesPositionsAcrossSlabs(t *testing.T) {
	r := New()
	e := slab.NewEngine(uuid.New())
	e.IMRBps = 1000
	e.MMRBps = 500
	r.Wire(e)
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	maker := e.AddAccount(uuid.New())
	e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 50_000, 10, 0)

	user := uuid.New()
	acc := e.AddAccount(user)

	mint := uuid.New()
	if err := r.Deposit(mint, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := r.Pledge(user, e.SlabID, mint, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("pledge: %v", err)
	}
	cap := r.MintCapability(user, e.SlabID, mint, big.NewInt(1_000_000), 1_000_000)

	var salt [16]byte
	hash := slab.CommitmentHash(1, instr, common.Buy, 10, 50_000, salt)
	res, err := e.Reserve(acc, instr, common.Buy, 10, 50_000, 5_000, hash, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := e.Commit(res.HoldID, cap.Ref(), salt); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p := r.Portfolio(user)
	p.UpdateEquity(big.NewInt(10))
	p.UpdateMargin(big.NewInt(300), big.NewInt(150))
	_ = p.UpdateExposure(0, instr, 10)

	targets := []LiquidationTarget{
		{SlabIdx: 0, Engine: e, AccountIdx: acc, InstrumentIdx: instr},
	}
	slabMM := map[uint16]*big.Int{0: big.NewInt(150)}

	residual, err := r.LiquidateUser(user, LiquidationGraceMs, targets, slabMM)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if residual == nil {
		t.Fatalf("expected a residual value, got nil")
	}
	if got := p.Exposure(0, instr); got != 0 {
		t.Fatalf("expected exposure cleared after liquidation, got %d", got)
	}
}
