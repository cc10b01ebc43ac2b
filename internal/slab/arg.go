package slab

import (
	"math/big"

	"percolator/internal/common"
)

// ARGTaxBps is the sandwich tax rate applied to a fill's notional when
// ARGMode is ARGTax and the fill would realize a same-epoch round trip.
const ARGTaxBps = 50

// findOrAllocAggressor returns the AggressorEntry index for
// (accountIdx, instrumentIdx) in the instrument's current epoch, allocating
// and resetting one if the cached entry is stale (a new epoch started) or
// absent. Uses a flat linear scan bounded by MaxAggressorEntries in
// practice far fewer are live per account at once; a per-(account,
// instrument) side index is unnecessary at this scale, unlike the hot-path
// reservation lookup.
func (e *Engine) findOrAllocAggressor(accountIdx uint32, instrumentIdx uint16, epoch uint16) uint32 {
	for i := uint32(0); i < e.aggressors.Cap(); i++ {
		a := e.aggressors.Get(i)
		if a.Used && a.AccountIdx == accountIdx && a.InstrumentIdx == instrumentIdx {
			if a.Epoch != epoch {
				a.Epoch = epoch
				a.BuyQty, a.SellQty = 0, 0
				a.BuyNotional, a.SellNotional = big.NewInt(0), big.NewInt(0)
			}
			return i
		}
	}
	idx := e.aggressors.Alloc()
	if idx == common.None {
		return common.None
	}
	a := e.aggressors.Get(idx)
	*a = AggressorEntry{
		AccountIdx:    accountIdx,
		InstrumentIdx: instrumentIdx,
		Epoch:         epoch,
		BuyNotional:   big.NewInt(0),
		SellNotional:  big.NewInt(0),
		Used:          true,
	}
	return idx
}

// argCheck applies the Aggressor Roundtrip Guard to one taker fill: it
// records the fill's flow, and if ARGMode is enabled and the fill opposes
// already-recorded flow this epoch at a price that realizes non-negative PnL
// against that flow's average price (a same-epoch round trip), either reports the
// fill should be clipped (qty=0, caller skips it) or returns an extra tax to
// add to the fee. Grounded on spec.md §4.4's ARG description; the
// AggressorEntry pool itself is original_source's (allocated, never wired).
func (e *Engine) argCheck(accountIdx uint32, instrumentIdx uint16, side common.Side, qty, price uint64) (clip bool, extraTax *big.Int) {
	extraTax = big.NewInt(0)
	if e.ARGMode == ARGOff {
		return false, extraTax
	}
	instr := &e.instruments[instrumentIdx]
	idx := e.findOrAllocAggressor(accountIdx, instrumentIdx, instr.Epoch)
	if idx == common.None {
		return false, extraTax
	}
	a := e.aggressors.Get(idx)

	// a round trip realizes non-negative PnL when buying back at or below the
	// epoch's average sell price, or selling at or above its average buy price.
	var roundtrip bool
	if side == common.Buy && a.SellQty > 0 {
		roundtrip = common.MulU64(price, a.SellQty).Cmp(a.SellNotional) <= 0
	} else if side == common.Sell && a.BuyQty > 0 {
		roundtrip = common.MulU64(price, a.BuyQty).Cmp(a.BuyNotional) >= 0
	}

	notional := common.MulU64(qty, price)
	if side == common.Buy {
		a.BuyQty += qty
		a.BuyNotional.Add(a.BuyNotional, notional)
	} else {
		a.SellQty += qty
		a.SellNotional.Add(a.SellNotional, notional)
	}

	if !roundtrip {
		return false, extraTax
	}
	if e.ARGMode == ARGClip {
		return true, extraTax
	}
	extraTax = common.FeeOnNotional(notional, ARGTaxBps)
	return false, extraTax
}
