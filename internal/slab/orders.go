package slab

import "percolator/internal/common"

// PlaceOrder allocates and inserts a new resting order. Regular-class
// orders land PENDING and wait for the next BatchOpen to become matchable;
// DLP-class orders post straight to LIVE. Grounded on spec.md §4.2's
// insertion rule and original_source's MakerClass/OrderState split.
func (e *Engine) PlaceOrder(accountIdx uint32, instrumentIdx uint16, side common.Side, tif common.TimeInForce, makerClass common.MakerClass, price, qty, createdMs uint64) (orderID uint64, idx uint32, cErr *common.Error) {
	e.exec(func() {
		if int(instrumentIdx) >= e.numInstr {
			cErr = common.New(common.InvalidInstrument, "instrument %d not registered", instrumentIdx)
			return
		}
		instr := &e.instruments[instrumentIdx]
		if e.CurrentTs < instr.FreezeUntilMs {
			cErr = common.New(common.InstrumentFrozen, "instrument %d frozen until %d", instrumentIdx, instr.FreezeUntilMs)
			return
		}
		if !common.IsTickAligned(price, instr.Tick) {
			cErr = common.New(common.MisalignedPx, "price %d not tick-aligned to %d", price, instr.Tick)
			return
		}
		if !common.IsLotAligned(qty, instr.Lot) {
			cErr = common.New(common.MisalignedQty, "qty %d not lot-aligned to %d", qty, instr.Lot)
			return
		}

		i := e.orders.Alloc()
		if i == common.None {
			cErr = common.New(common.PoolFull, "order pool exhausted")
			return
		}
		id := e.nextOrderID
		e.nextOrderID++

		state := common.OrderPending
		eligibleEpoch := instr.Epoch + 1
		if makerClass == common.MakerDLP {
			state = common.OrderLive
			eligibleEpoch = instr.Epoch
		}

		o := e.orders.Get(i)
		*o = Order{
			OrderID:       id,
			AccountIdx:    accountIdx,
			InstrumentIdx: instrumentIdx,
			Side:          side,
			TIF:           tif,
			MakerClass:    makerClass,
			State:         state,
			EligibleEpoch: eligibleEpoch,
			CreatedMs:     createdMs,
			Price:         price,
			Qty:           qty,
			QtyOrig:       qty,
			Next:          common.None,
			Prev:          common.None,
			Used:          true,
		}
		e.insertOrder(i)
		orderID, idx = id, i
	})
	return orderID, idx, cErr
}

// CancelOrder removes a resting order and frees its slot. Fails if the
// order still has outstanding reserved quantity — callers must wait for the
// reservation holding it to commit, expire, or be cancelled first.
func (e *Engine) CancelOrder(idx uint32) *common.Error {
	var cErr *common.Error
	e.exec(func() {
		o := e.orders.Get(idx)
		if o == nil || !o.Used {
			cErr = common.New(common.UnknownOrder, "order %d not found", idx)
			return
		}
		if o.ReservedQty > 0 {
			cErr = common.New(common.CommitmentMismatch, "order %d has %d qty reserved by a live hold", idx, o.ReservedQty)
			return
		}
		e.removeOrder(idx)
		e.orders.Free(idx)
	})
	return cErr
}
