package slab

import (
	"math/big"

	"percolator/internal/common"
)

// ReserveResult mirrors original_source/programs/slab/src/matching/reserve.rs's
// ReserveResult.
type ReserveResult struct {
	HoldID    uint64
	VWAPPx    uint64
	WorstPx   uint64
	MaxCharge *big.Int
	ExpiryMs  uint64
	BookSeqno uint64
	FilledQty uint64
}

// Reserve walks the contra side's book and locks depth into a new
// Reservation's Slice list, without touching book prices or quantities
// beyond bumping each touched order's ReservedQty. Grounded on
// original_source's reserve()/walk_and_reserve(), generalized to walk the
// price-level tree (best price outward) instead of a single flat linked
// list.
func (e *Engine) Reserve(accountIdx uint32, instrumentIdx uint16, side common.Side, qty, limitPx, ttlMs uint64, commitmentHash [32]byte, routeID uint64) (*ReserveResult, *common.Error) {
	var res *ReserveResult
	var cErr *common.Error
	e.exec(func() {
		res, cErr = e.reserveLocked(accountIdx, instrumentIdx, side, qty, limitPx, ttlMs, commitmentHash, routeID)
	})
	return res, cErr
}

func (e *Engine) reserveLocked(accountIdx uint32, instrumentIdx uint16, side common.Side, qty, limitPx, ttlMs uint64, commitmentHash [32]byte, routeID uint64) (*ReserveResult, *common.Error) {
	if int(instrumentIdx) >= e.numInstr {
		return nil, common.New(common.InvalidInstrument, "instrument %d not registered", instrumentIdx)
	}
	instr := &e.instruments[instrumentIdx]
	if !common.IsTickAligned(limitPx, instr.Tick) {
		return nil, common.New(common.MisalignedPx, "price %d not tick-aligned to %d", limitPx, instr.Tick)
	}
	if !common.IsLotAligned(qty, instr.Lot) {
		return nil, common.New(common.MisalignedQty, "qty %d not lot-aligned to %d", qty, instr.Lot)
	}

	resvIdx := e.reservations.Alloc()
	if resvIdx == common.None {
		return nil, common.New(common.PoolFull, "reservation pool exhausted")
	}

	holdID := e.nextHoldID
	e.nextHoldID++

	contraSide := side.Opposite()
	filledQty, totalNotional, worstPx, sliceHead, werr := e.walkAndReserve(instrumentIdx, contraSide, qty, limitPx, resvIdx)
	if werr != nil {
		e.reservations.Free(resvIdx)
		return nil, werr
	}

	if filledQty < qty && !e.PartialFillAllowed {
		e.freeSlices(sliceHead)
		e.reservations.Free(resvIdx)
		return nil, common.New(common.InsufficientLiquidity, "only %d of %d fillable and partial fills disabled", filledQty, qty)
	}

	vwapPx := limitPx
	if filledQty > 0 {
		vwapPx = common.VWAP(totalNotional, filledQty)
	}
	maxCharge := calculateMaxCharge(filledQty, worstPx, instr.ContractSize, e.TakerFeeBps)

	expiryMs := ttlMs
	if ttlMs > MaxCapTTLMs {
		expiryMs = MaxCapTTLMs
	}
	expiryMs += e.CurrentTs

	resv := e.reservations.Get(resvIdx)
	*resv = Reservation{
		HoldID:          holdID,
		RouteID:         routeID,
		AccountIdx:      accountIdx,
		InstrumentIdx:   instrumentIdx,
		Side:            side,
		Qty:             filledQty,
		ReqQty:          qty,
		LimitPx:         limitPx,
		VWAPPx:          vwapPx,
		WorstPx:         worstPx,
		MaxCharge:       maxCharge,
		CommitmentHash:  commitmentHash,
		BookSeqnoAtHold: instr.BookSeqno,
		MarkAtHold:      instr.IndexPrice,
		ExpiryMs:        expiryMs,
		SliceHead:       sliceHead,
		Index:           resvIdx,
		Used:            true,
		Committed:       false,
	}
	e.resByHoldID[holdID] = resvIdx

	e.appendWAL(RecordReserve, reserveWALArgs{
		HoldID:         holdID,
		AccountIdx:     accountIdx,
		InstrumentIdx:  instrumentIdx,
		Side:           uint8(side),
		Qty:            qty,
		LimitPx:        limitPx,
		TTLMs:          ttlMs,
		CommitmentHash: commitmentHash,
		RouteID:        routeID,
	})

	return &ReserveResult{
		HoldID:    holdID,
		VWAPPx:    vwapPx,
		WorstPx:   worstPx,
		MaxCharge: maxCharge,
		ExpiryMs:  expiryMs,
		BookSeqno: instr.BookSeqno,
		FilledQty: filledQty,
	}, nil
}

// walkAndReserve visits price levels on side from best to worst, within
// each level walking maker orders head-to-tail (FIFO), locking up to qty
// total into newly allocated Slices.
func (e *Engine) walkAndReserve(instrumentIdx uint16, side common.Side, qty, limitPx uint64, resvIdx uint32) (filledQty uint64, totalNotional *big.Int, worstPx uint64, sliceHead uint32, err *common.Error) {
	tree := e.bookFor(instrumentIdx, side)
	totalNotional = big.NewInt(0)
	worstPx = limitPx
	sliceHead = common.None
	sliceTail := common.None
	qtyLeft := qty

	visit := func(level *priceLevel) bool {
		crosses := (side == common.Sell && level.price <= limitPx) || (side == common.Buy && level.price >= limitPx)
		if !crosses {
			return false
		}
		cur := level.head
		for cur != common.None && qtyLeft > 0 {
			order := e.orders.Get(cur)
			next := order.Next
			available := order.Open()
			if available == 0 {
				cur = next
				continue
			}
			take := qtyLeft
			if available < take {
				take = available
			}

			sliceIdx := e.slices.Alloc()
			if sliceIdx == common.None {
				err = common.New(common.OutOfSlices, "slice pool exhausted")
				return false
			}
			sl := e.slices.Get(sliceIdx)
			*sl = Slice{OrderIdx: cur, Qty: take, Next: common.None, Index: sliceIdx, Used: true}
			if sliceHead == common.None {
				sliceHead = sliceIdx
			} else {
				e.slices.Get(sliceTail).Next = sliceIdx
			}
			sliceTail = sliceIdx

			order.ReservedQty += take
			qtyLeft -= take
			totalNotional.Add(totalNotional, common.MulU64(take, order.Price))
			worstPx = order.Price

			cur = next
		}
		return qtyLeft > 0
	}

	// contra-side convention: reserving against Sell asks wants ascending
	// price (cheapest first); against Buy bids wants descending (richest
	// first) — i.e. walk always starts at the book's own "best" for side.
	if side == common.Buy {
		tree.ForEachDescending(visit)
	} else {
		tree.ForEachAscending(visit)
	}

	filledQty = qty - qtyLeft
	return filledQty, totalNotional, worstPx, sliceHead, err
}

func calculateMaxCharge(filledQty, price, contractSize uint64, takerFeeBps int64) *big.Int {
	notional := common.MulU64(filledQty, contractSize)
	value := common.MulBig(price, notional)
	fee := common.FeeOnNotional(value, takerFeeBps)
	return new(big.Int).Add(value, fee)
}

// freeSlices releases every slice in the list starting at head back to the
// pool and unwinds each touched order's ReservedQty.
func (e *Engine) freeSlices(head uint32) {
	cur := head
	for cur != common.None {
		sl := e.slices.Get(cur)
		next := sl.Next
		order := e.orders.Get(sl.OrderIdx)
		if order != nil {
			if order.ReservedQty >= sl.Qty {
				order.ReservedQty -= sl.Qty
			} else {
				order.ReservedQty = 0
			}
		}
		e.slices.Free(cur)
		cur = next
	}
}

// Cancel releases a not-yet-committed reservation's slices and frees the
// reservation. Idempotent: cancelling an unknown or already-committed hold
// returns an error rather than panicking, but never corrupts state either
// way.
func (e *Engine) Cancel(holdID uint64) *common.Error {
	var cErr *common.Error
	e.exec(func() {
		idx, ok := e.resByHoldID[holdID]
		if !ok {
			cErr = common.New(common.UnknownHold, "no reservation for hold %d", holdID)
			return
		}
		resv := e.reservations.Get(idx)
		if resv.Committed {
			cErr = common.New(common.CommitmentMismatch, "hold %d already committed", holdID)
			return
		}
		e.freeSlices(resv.SliceHead)
		e.reservations.Free(idx)
		delete(e.resByHoldID, holdID)
		e.appendWAL(RecordCancel, cancelWALArgs{HoldID: holdID})
	})
	return cErr
}
