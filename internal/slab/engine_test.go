package slab

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"percolator/internal/common"
)

func newTestEngine() *Engine {
	e := NewEngine(uuid.New())
	e.TakerFeeBps = 10
	e.MakerFeeBps = -5
	e.IMRBps = 1000
	e.MMRBps = 500
	return e
}

func fundAccount(e *Engine, idx uint32, cash int64) {
	e.exec(func() {
		e.accounts.Get(idx).Cash = big.NewInt(cash)
	})
}

func keyOf(e *Engine, idx uint32) common.AccountKey {
	var key common.AccountKey
	e.exec(func() { key = e.accounts.Get(idx).Key })
	return key
}

func TestAddInstrumentIdempotent(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	i1 := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	i2 := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	if i1 != i2 {
		t.Fatalf("expected repeat AddInstrument to return same index, got %d and %d", i1, i2)
	}
}

func TestAddAccountIdempotent(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	key := uuid.New()
	a1 := e.AddAccount(key)
	a2 := e.AddAccount(key)
	if a1 != a2 {
		t.Fatalf("expected repeat AddAccount to return same index, got %d and %d", a1, a2)
	}
}

func TestPlaceOrderRejectsMisalignedPrice(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 10, 1, 50_000)
	acc := e.AddAccount(uuid.New())

	_, _, err := e.PlaceOrder(acc, instr, common.Buy, common.TIFGTC, common.MakerDLP, 105, 1, 0)
	if err == nil || err.Code != common.MisalignedPx {
		t.Fatalf("expected MisalignedPx, got %v", err)
	}
}

func TestPlaceOrderDLPGoesLiveRegularGoesPending(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	acc := e.AddAccount(uuid.New())

	_, liveIdx, err := e.PlaceOrder(acc, instr, common.Buy, common.TIFGTC, common.MakerDLP, 100, 5, 0)
	if err != nil {
		t.Fatalf("dlp place: %v", err)
	}
	_, pendingIdx, err := e.PlaceOrder(acc, instr, common.Buy, common.TIFGTC, common.MakerRegular, 99, 5, 0)
	if err != nil {
		t.Fatalf("regular place: %v", err)
	}

	var liveState, pendingState common.OrderState
	e.exec(func() {
		liveState = e.orders.Get(liveIdx).State
		pendingState = e.orders.Get(pendingIdx).State
	})
	if liveState != common.OrderLive {
		t.Errorf("expected DLP order LIVE, got %v", liveState)
	}
	if pendingState != common.OrderPending {
		t.Errorf("expected regular order PENDING, got %v", pendingState)
	}

	if price, ok := e.BestPrice(instr, common.Buy); !ok || price != 100 {
		t.Errorf("expected best bid 100 from the live DLP order, got %d ok=%v", price, ok)
	}
}

func TestBatchOpenPromotesPendingOrders(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	acc := e.AddAccount(uuid.New())

	e.PlaceOrder(acc, instr, common.Buy, common.TIFGTC, common.MakerRegular, 99, 5, 0)

	if _, ok := e.BestPrice(instr, common.Buy); ok {
		t.Fatalf("pending order should not be visible before batch_open")
	}

	if _, err := e.BatchOpen(instr, 1000); err != nil {
		t.Fatalf("batch_open: %v", err)
	}

	if price, ok := e.BestPrice(instr, common.Buy); !ok || price != 99 {
		t.Errorf("expected promoted order at 99, got %d ok=%v", price, ok)
	}
}

func TestReserveCommitFillsAgainstResting(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	maker := e.AddAccount(uuid.New())
	taker := e.AddAccount(uuid.New())
	fundAccount(e, maker, 1_000_000)
	fundAccount(e, taker, 1_000_000)

	e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 100, 10, 0)

	salt := [16]byte{1, 2, 3}
	hash := CommitmentHash(1, instr, common.Buy, 10, 100, salt)

	res, err := e.Reserve(taker, instr, common.Buy, 10, 100, 60_000, hash, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.VWAPPx != 100 {
		t.Errorf("expected vwap 100, got %d", res.VWAPPx)
	}

	capRef := common.CapabilityRef{
		ScopeUser: keyOf(e, taker),
		ScopeSlab: e.SlabID,
		ExpiryTs:  1_000_000,
	}
	cr, err := e.Commit(res.HoldID, capRef, salt)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if cr.FilledQty != 10 {
		t.Errorf("expected filled 10, got %d", cr.FilledQty)
	}
	if cr.AvgPrice != 100 {
		t.Errorf("expected avg price 100, got %d", cr.AvgPrice)
	}

	if _, ok := e.BestPrice(instr, common.Sell); ok {
		t.Errorf("expected maker order fully consumed")
	}
}

func TestCommitRejectsBadCommitmentReveal(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	maker := e.AddAccount(uuid.New())
	taker := e.AddAccount(uuid.New())
	fundAccount(e, maker, 1_000_000)
	fundAccount(e, taker, 1_000_000)

	e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 100, 10, 0)

	salt := [16]byte{9, 9, 9}
	wrongHash := CommitmentHash(999, instr, common.Buy, 10, 100, salt)

	res, err := e.Reserve(taker, instr, common.Buy, 10, 100, 60_000, wrongHash, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	capRef := common.CapabilityRef{ScopeUser: keyOf(e, taker), ScopeSlab: e.SlabID, ExpiryTs: 1_000_000}
	_, err = e.Commit(res.HoldID, capRef, salt)
	if err == nil || err.Code != common.CommitmentMismatch {
		t.Fatalf("expected CommitmentMismatch, got %v", err)
	}
}

func TestCancelReleasesReservedDepth(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	maker := e.AddAccount(uuid.New())
	taker := e.AddAccount(uuid.New())
	fundAccount(e, maker, 1_000_000)
	fundAccount(e, taker, 1_000_000)

	_, makerOrderIdx, _ := e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 100, 10, 0)

	salt := [16]byte{}
	hash := CommitmentHash(1, instr, common.Buy, 10, 100, salt)
	res, err := e.Reserve(taker, instr, common.Buy, 10, 100, 60_000, hash, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var reservedBefore uint64
	e.exec(func() { reservedBefore = e.orders.Get(makerOrderIdx).ReservedQty })
	if reservedBefore != 10 {
		t.Fatalf("expected 10 reserved, got %d", reservedBefore)
	}

	if err := e.Cancel(res.HoldID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var reservedAfter uint64
	e.exec(func() { reservedAfter = e.orders.Get(makerOrderIdx).ReservedQty })
	if reservedAfter != 0 {
		t.Errorf("expected reserved qty released to 0, got %d", reservedAfter)
	}
}

func TestMarginPreTradeRejectsOverLeveragedAdd(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	acc := e.AddAccount(uuid.New())
	fundAccount(e, acc, 100)

	ok, err := e.CheckMarginPreTrade(acc, instr, 100)
	if err != nil {
		t.Fatalf("check margin: %v", err)
	}
	if ok {
		t.Errorf("expected pre-trade margin check to fail for a thinly-funded account")
	}
}

func TestLiquidationCallClosesPositionsAndReportsResidual(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 100)
	maker := e.AddAccount(uuid.New())
	taker := e.AddAccount(uuid.New())
	fundAccount(e, maker, 1_000_000)
	fundAccount(e, taker, 10)

	e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 100, 10, 0)
	salt := [16]byte{}
	hash := CommitmentHash(1, instr, common.Buy, 10, 100, salt)
	res, err := e.Reserve(taker, instr, common.Buy, 10, 100, 60_000, hash, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	capRef := common.CapabilityRef{ScopeUser: keyOf(e, taker), ScopeSlab: e.SlabID, ExpiryTs: 1_000_000}
	if _, err := e.Commit(res.HoldID, capRef, salt); err != nil {
		t.Fatalf("commit: %v", err)
	}

	liquidatable, err := e.IsLiquidatable(taker)
	if err != nil {
		t.Fatalf("is liquidatable: %v", err)
	}
	if !liquidatable {
		t.Fatalf("expected thinly-funded taker to be liquidatable")
	}

	residual, err := e.LiquidationCall(taker, big.NewInt(0))
	if err != nil {
		t.Fatalf("liquidation call: %v", err)
	}
	if residual == nil {
		t.Fatalf("expected non-nil residual")
	}
}
