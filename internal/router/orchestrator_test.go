package router

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"percolator/internal/common"
	"percolator/internal/slab"
)

func newTestEngine(t *testing.T, r *Router) (*slab.Engine, uint16, uint32) {
	return newTestEngineWithDepth(t, r, 20)
}

func newTestEngineWithDepth(t *testing.T, r *Router, depth uint64) (*slab.Engine, uint16, uint32) {
	t.Helper()
	e := slab.NewEngine(uuid.New())
	e.TakerFeeBps = 10
	e.MakerFeeBps = -5
	e.IMRBps = 1000
	e.MMRBps = 500
	r.Wire(e)
	t.Cleanup(e.Close)

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	maker := e.AddAccount(uuid.New())
	if _, _, err := e.PlaceOrder(maker, instr, common.Sell, common.TIFGTC, common.MakerDLP, 50_000, depth, 0); err != nil {
		t.Fatalf("seed maker order: %v", err)
	}
	return e, instr, maker
}

// TestMultiReserveMultiCommitAcrossTwoSlabs exercises the full spec.md §4.9
// happy path: reserve fans out to two slabs concurrently, both legs commit,
// and the user's cross-slab Portfolio ends up holding the combined filled
// quantity split across the two (slab, instrument) exposure cells.
func TestMultiReserveMultiCommitAcrossTwoSlabs(t *testing.T) {
	r := New()
	e1, instr1, _ := newTestEngine(t, r)
	e2, instr2, _ := newTestEngine(t, r)

	user := uuid.New()
	mint := uuid.New()
	r.Deposit(mint, big.NewInt(10_000_000))
	acc1 := e1.AddAccount(user)
	acc2 := e2.AddAccount(user)

	targets := []SlabTarget{
		{SlabID: e1.SlabID, SlabIdx: 0, Engine: e1, AccountIdx: acc1, InstrumentIdx: instr1},
		{SlabID: e2.SlabID, SlabIdx: 1, Engine: e2, AccountIdx: acc2, InstrumentIdx: instr2},
	}

	const qty, limitPx = uint64(25), uint64(50_000)
	salts := map[common.SlabID][16]byte{}
	for _, tgt := range targets {
		var salt [16]byte
		salt[0] = byte(tgt.SlabIdx + 1)
		salts[tgt.SlabID] = salt
	}
	commitmentHash := func(routeID uint64, slabID common.SlabID) [32]byte {
		salt := salts[slabID]
		for _, tgt := range targets {
			if tgt.SlabID == slabID {
				return slab.CommitmentHash(routeID, tgt.InstrumentIdx, common.Buy, qty, limitPx, salt)
			}
		}
		return [32]byte{}
	}

	result, err := r.MultiReserve(common.Buy, qty, limitPx, 5_000, targets, commitmentHash)
	if err != nil {
		t.Fatalf("multi reserve: %v", err)
	}
	if result.FilledQty == 0 {
		t.Fatalf("expected at least one leg to fill, got 0")
	}

	if err := r.MultiCommit(user, mint, result, salts); err != nil {
		t.Fatalf("multi commit: %v", err)
	}

	portfolio := r.Portfolio(user)
	var total int64
	for _, leg := range result.Legs {
		total += portfolio.Exposure(leg.SlabIdx, leg.InstrumentIdx)
	}
	if uint64(total) != result.FilledQty {
		t.Fatalf("portfolio exposure total = %d, want %d", total, result.FilledQty)
	}
}

// TestMultiCommitRollsBackOnLegFailure confirms that when one leg's commit
// fails, that leg's pledged escrow is unpledged and its reservation is
// cancelled, while the leg that already committed keeps its fill.
func TestMultiCommitRollsBackOnLegFailure(t *testing.T) {
	r := New()
	e1, instr1, _ := newTestEngineWithDepth(t, r, 10)
	e2, instr2, _ := newTestEngineWithDepth(t, r, 10)

	user := uuid.New()
	mint := uuid.New()
	r.Deposit(mint, big.NewInt(10_000_000))
	acc1 := e1.AddAccount(user)
	acc2 := e2.AddAccount(user)

	targets := []SlabTarget{
		{SlabID: e1.SlabID, SlabIdx: 0, Engine: e1, AccountIdx: acc1, InstrumentIdx: instr1},
		{SlabID: e2.SlabID, SlabIdx: 1, Engine: e2, AccountIdx: acc2, InstrumentIdx: instr2},
	}

	// each slab only has 10 units of depth, so covering qty=15 requires
	// both legs to be chosen.
	const qty, limitPx = uint64(15), uint64(50_000)
	salts := map[common.SlabID][16]byte{}
	for _, tgt := range targets {
		var salt [16]byte
		salt[0] = byte(tgt.SlabIdx + 1)
		salts[tgt.SlabID] = salt
	}
	commitmentHash := func(routeID uint64, slabID common.SlabID) [32]byte {
		return slab.CommitmentHash(routeID, 0, common.Buy, qty, limitPx, salts[slabID])
	}

	result, err := r.MultiReserve(common.Buy, qty, limitPx, 5_000, targets, commitmentHash)
	if err != nil {
		t.Fatalf("multi reserve: %v", err)
	}

	// corrupt the second leg's salt so its commitment reveal fails during
	// MultiCommit, forcing the rollback path.
	if len(result.Legs) < 2 {
		t.Skip("need two legs to exercise rollback")
	}
	badSalts := map[common.SlabID][16]byte{}
	for k, v := range salts {
		badSalts[k] = v
	}
	corrupted := result.Legs[1].SlabID
	bad := badSalts[corrupted]
	bad[15] ^= 0xFF
	badSalts[corrupted] = bad

	if err := r.MultiCommit(user, mint, result, badSalts); err == nil {
		t.Fatalf("expected multi commit to fail on corrupted reveal")
	}

	// the corrupted leg never committed: its pledge must be fully unwound.
	corruptedEscrow := r.escrowFor(user, corrupted, mint)
	if corruptedEscrow.Balance.Sign() != 0 {
		t.Fatalf("expected corrupted leg's escrow to be unpledged, balance = %s", corruptedEscrow.Balance)
	}

	// the first leg committed before the failure and is left in place
	// (logical atomicity, not a cross-slab transaction): its fill must
	// still be reflected in the user's portfolio.
	portfolio := r.Portfolio(user)
	firstLeg := result.Legs[0]
	if got := portfolio.Exposure(firstLeg.SlabIdx, firstLeg.InstrumentIdx); uint64(got) != firstLeg.FilledQty {
		t.Fatalf("first leg exposure = %d, want %d (committed leg should not be rolled back)", got, firstLeg.FilledQty)
	}
}
