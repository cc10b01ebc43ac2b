package slab

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"percolator/internal/common"
	"percolator/internal/telemetry"
)

// CommitResult mirrors original_source's CommitResult.
type CommitResult struct {
	FilledQty  uint64
	AvgPrice   uint64
	TotalFee   *big.Int
	TotalDebit *big.Int
}

// CommitmentHash computes H(route_id||iidx||side||qty||limit_px||salt), the
// reveal a caller must match at commit time against the hash locked in at
// reserve. sha256 is a plain stdlib choice here: no example repo or the
// original program names a specific hash construction, and commit-reveal
// hashing is a narrow cryptographic primitive, not a concern any pack
// library (zap/viper/pebble/sarama/grpc/uuid) addresses.
func CommitmentHash(routeID uint64, instrumentIdx uint16, side common.Side, qty, limitPx uint64, salt [16]byte) [32]byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, routeID)
	binary.Write(&buf, binary.LittleEndian, instrumentIdx)
	binary.Write(&buf, binary.LittleEndian, uint8(side))
	binary.Write(&buf, binary.LittleEndian, qty)
	binary.Write(&buf, binary.LittleEndian, limitPx)
	buf.Write(salt[:])
	return sha256.Sum256(buf.Bytes())
}

// Commit redeems a not-yet-expired, not-yet-committed reservation at its
// locked maker prices after validating the presented capability's scope,
// the kill band against index-price drift since reserve, and the
// commitment reveal: walks the reservation's slice list, executes one trade
// per slice, updates both sides' positions, applies maker fees/rebates
// (suppressing the rebate for JIT makers who posted after this batch
// opened), frees fully-filled orders, invokes the Router debit callback,
// and releases the reservation's slices. Grounded on original_source's
// commit()/execute_slices(), extended with the capability/kill-band/reveal
// checks spec.md §4.4 requires that original_source's retrieved slice
// does not show wired into commit.
func (e *Engine) Commit(holdID uint64, cap common.CapabilityRef, salt [16]byte) (*CommitResult, *common.Error) {
	var res *CommitResult
	var cErr *common.Error
	e.exec(func() {
		res, cErr = e.commitLocked(holdID, cap, salt)
	})
	return res, cErr
}

func (e *Engine) commitLocked(holdID uint64, cap common.CapabilityRef, salt [16]byte) (*CommitResult, *common.Error) {
	resvIdx, ok := e.resByHoldID[holdID]
	if !ok {
		return nil, common.New(common.UnknownHold, "no reservation for hold %d", holdID)
	}
	resv := e.reservations.Get(resvIdx)
	if e.CurrentTs > resv.ExpiryMs {
		return nil, common.New(common.ReservationExpired, "hold %d expired at %d, now %d", holdID, resv.ExpiryMs, e.CurrentTs)
	}
	if resv.ExpiryMs > cap.ExpiryTs {
		return nil, common.New(common.CapExpired, "reservation outlives capability")
	}
	if resv.Committed {
		return nil, common.New(common.CommitmentMismatch, "hold %d already committed", holdID)
	}
	if cap.ScopeUser != e.accounts.Get(resv.AccountIdx).Key || cap.ScopeSlab != e.SlabID {
		return nil, common.New(common.CapScopeMismatch, "capability scope does not match reservation")
	}
	if cap.Burned {
		return nil, common.New(common.CapBurned, "capability already burned")
	}
	if cap.ExpiryTs < e.CurrentTs {
		return nil, common.New(common.CapExpired, "capability expired")
	}

	instr := &e.instruments[resv.InstrumentIdx]
	if e.KillBandBps > 0 && resv.MarkAtHold > 0 {
		diff := int64(instr.IndexPrice) - int64(resv.MarkAtHold)
		if diff < 0 {
			diff = -diff
		}
		if uint64(diff)*10_000/resv.MarkAtHold > e.KillBandBps {
			telemetry.RecordKillBandTrip(e.SlabID.String())
			return nil, common.New(common.KillBandTripped, "mark moved %d bps since reserve, limit %d", uint64(diff)*10_000/resv.MarkAtHold, e.KillBandBps)
		}
	}

	want := CommitmentHash(resv.RouteID, resv.InstrumentIdx, resv.Side, resv.ReqQty, resv.LimitPx, salt)
	if want != resv.CommitmentHash {
		return nil, common.New(common.CommitmentMismatch, "commitment reveal does not match")
	}

	takerAccountIdx := resv.AccountIdx
	instrumentIdx := resv.InstrumentIdx
	side := resv.Side
	sliceHead := resv.SliceHead
	routeID := resv.RouteID
	batchOpenMs := instr.BatchOpenMs

	filledQty, totalNotional, totalFee := e.executeSlices(sliceHead, takerAccountIdx, instrumentIdx, side, routeID, batchOpenMs)

	avgPrice := uint64(0)
	if filledQty > 0 {
		avgPrice = common.VWAP(totalNotional, filledQty)
	}
	totalDebit := new(big.Int).Add(totalNotional, totalFee)

	if totalDebit.Cmp(resv.MaxCharge) > 0 {
		return nil, common.New(common.ChargeExceedsMax, "total charge %s exceeds max_charge %s", totalDebit, resv.MaxCharge)
	}

	if e.Debit != nil {
		if _, derr := e.Debit(cap, totalDebit); derr != nil {
			return nil, derr
		}
	}

	resv.Committed = true
	e.freeSlices(sliceHead)
	delete(e.resByHoldID, holdID)
	e.reservations.Free(resvIdx)

	e.appendWAL(RecordCommit, commitWALArgs{HoldID: holdID, Cap: toCapWALArgs(cap), Salt: salt})

	return &CommitResult{
		FilledQty:  filledQty,
		AvgPrice:   avgPrice,
		TotalFee:   totalFee,
		TotalDebit: totalDebit,
	}, nil
}

func (e *Engine) executeSlices(sliceHead uint32, takerAccountIdx uint32, instrumentIdx uint16, side common.Side, routeID, batchOpenMs uint64) (totalQty uint64, totalNotional, totalFee *big.Int) {
	totalNotional = big.NewInt(0)
	totalFee = big.NewInt(0)

	cur := sliceHead
	for cur != common.None {
		sl := e.slices.Get(cur)
		orderIdx := sl.OrderIdx
		qty := sl.Qty
		next := sl.Next

		order := e.orders.Get(orderIdx)
		makerAccountIdx := order.AccountIdx
		price := order.Price
		jit := order.CreatedMs > batchOpenMs

		clip, extraTax := e.argCheck(takerAccountIdx, instrumentIdx, side, qty, price)
		if clip {
			cur = next
			continue
		}

		e.executeTrade(takerAccountIdx, makerAccountIdx, instrumentIdx, side, qty, price, order.OrderID, routeID)

		notional := common.MulU64(qty, price)
		takerFee := common.FeeOnNotional(notional, e.TakerFeeBps)
		takerFee.Add(takerFee, extraTax)
		makerFee := common.FeeOnNotional(notional, e.MakerFeeBps)
		// JIT makers (posted after this batch opened) receive no rebate
		// this batch, per spec.md §4.4's anti-toxicity penalty.
		if jit && makerFee.Sign() < 0 {
			makerFee = big.NewInt(0)
		}

		totalQty += qty
		totalNotional.Add(totalNotional, notional)
		totalFee.Add(totalFee, takerFee)

		maker := e.accounts.Get(makerAccountIdx)
		// A negative maker fee is a rebate paid to the maker.
		maker.Cash.Sub(maker.Cash, makerFee)

		order.Qty -= qty
		if order.Qty == 0 {
			e.removeOrder(orderIdx)
			e.orders.Free(orderIdx)
		}

		cur = next
	}
	return totalQty, totalNotional, totalFee
}

func (e *Engine) executeTrade(takerAccountIdx, makerAccountIdx uint32, instrumentIdx uint16, side common.Side, qty, price uint64, makerOrderID, routeID uint64) {
	instr := &e.instruments[instrumentIdx]

	takerQty := int64(qty)
	if side == common.Sell {
		takerQty = -takerQty
	}
	e.updatePosition(takerAccountIdx, instrumentIdx, takerQty, price, instr.CumFunding)
	e.updatePosition(makerAccountIdx, instrumentIdx, -takerQty, price, instr.CumFunding)

	telemetry.RecordTrade(e.SlabID.String(), instr.Symbol)

	e.trades.Enqueue(Trade{
		Ts:            e.CurrentTs,
		OrderIDMaker:  makerOrderID,
		OrderIDTaker:  routeID,
		InstrumentIdx: instrumentIdx,
		Side:          side,
		Price:         price,
		Qty:           qty,
		RevealMs:      e.CurrentTs,
	})
}

// updatePosition applies a VWAP entry-price update on a same-sign add,
// realizes PnL on close/flip for an opposite-sign reduction, and handles the
// flip-and-reopen case when the reduction overshoots to the other side.
// Grounded on original_source's update_position.
func (e *Engine) updatePosition(accountIdx uint32, instrumentIdx uint16, qtyDelta int64, price uint64, cumFunding *big.Int) {
	account := e.accounts.Get(accountIdx)

	var posIdx uint32 = common.None
	for cur := account.PositionHead; cur != common.None; {
		p := e.positions.Get(cur)
		if p.InstrumentIdx == instrumentIdx {
			posIdx = cur
			break
		}
		cur = p.NextInAccount
	}

	if posIdx == common.None {
		if qtyDelta == 0 {
			return
		}
		idx := e.positions.Alloc()
		if idx == common.None {
			return
		}
		p := e.positions.Get(idx)
		*p = Position{
			AccountIdx:    accountIdx,
			InstrumentIdx: instrumentIdx,
			Qty:           qtyDelta,
			EntryPx:       price,
			LastFunding:   new(big.Int).Set(cumFunding),
			NextInAccount: account.PositionHead,
			Index:         idx,
			Used:          true,
		}
		account.PositionHead = idx
		return
	}

	p := e.positions.Get(posIdx)
	newQty := p.Qty + qtyDelta

	switch {
	case newQty == 0:
		pnl := common.PnL(p.Qty, p.EntryPx, price)
		account.Cash.Add(account.Cash, pnl)
		e.removePosition(accountIdx, posIdx)
	case (p.Qty > 0 && newQty > 0) || (p.Qty < 0 && newQty < 0):
		absOld := abs64(p.Qty)
		absDelta := abs64(qtyDelta)
		oldNotional := common.MulU64(absOld, p.EntryPx)
		deltaNotional := common.MulU64(absDelta, price)
		newNotional := new(big.Int).Add(oldNotional, deltaNotional)
		p.EntryPx = common.VWAP(newNotional, absOld+absDelta)
		p.Qty = newQty
	default:
		closeQty := p.Qty
		pnl := common.PnL(closeQty, p.EntryPx, price)
		account.Cash.Add(account.Cash, pnl)
		p.Qty = newQty
		p.EntryPx = price
		p.LastFunding = new(big.Int).Set(cumFunding)
	}
}

func (e *Engine) removePosition(accountIdx, positionIdx uint32) {
	account := e.accounts.Get(accountIdx)
	var prev uint32 = common.None
	cur := account.PositionHead
	for cur != common.None {
		if cur == positionIdx {
			p := e.positions.Get(cur)
			next := p.NextInAccount
			if prev == common.None {
				account.PositionHead = next
			} else {
				e.positions.Get(prev).NextInAccount = next
			}
			e.positions.Free(positionIdx)
			return
		}
		p := e.positions.Get(cur)
		prev = cur
		cur = p.NextInAccount
	}
}

func abs64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
