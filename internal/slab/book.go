package slab

import "percolator/internal/common"

// bookFor returns the red-black tree of LIVE price levels for one
// instrument/side. PENDING orders are not price-ordered: they sit in a flat
// doubly-linked list off the instrument (BidsPendingHead/AsksPendingHead)
// until BatchOpen promotes them, mirroring original_source's separate
// pending-head fields.
func (e *Engine) bookFor(instrumentIdx uint16, side common.Side) *rbTree {
	return e.books[instrumentIdx][side]
}

// insertOrder links order idx into its book (LIVE: price-level tree; PENDING:
// flat per-instrument list, newest first) and, for LIVE orders, bumps
// book_seqno. Must run on the engine goroutine.
func (e *Engine) insertOrder(idx uint32) {
	o := e.orders.Get(idx)
	instr := &e.instruments[o.InstrumentIdx]
	o.Prev = common.None
	o.Next = common.None

	if o.State == common.OrderPending {
		head := instr.headForSide(o.Side, true)
		o.Next = *head
		if *head != common.None {
			e.orders.Get(*head).Prev = idx
		}
		*head = idx
		return
	}

	tree := e.bookFor(o.InstrumentIdx, o.Side)
	level := tree.UpsertLevel(o.Price)
	if level.tail == common.None {
		level.head = idx
		level.tail = idx
	} else {
		tail := e.orders.Get(level.tail)
		tail.Next = idx
		o.Prev = level.tail
		level.tail = idx
	}
	level.totalQty += o.Qty
	level.orderCount++
	instr.BookSeqno++
}

// removeOrder unlinks order idx from whichever list it currently occupies
// and, for LIVE orders, deletes the price level if it was the last order
// there. Bumps book_seqno for LIVE removals. Does not free the order slot.
func (e *Engine) removeOrder(idx uint32) {
	o := e.orders.Get(idx)
	instr := &e.instruments[o.InstrumentIdx]

	if o.State == common.OrderPending {
		head := instr.headForSide(o.Side, true)
		if o.Prev != common.None {
			e.orders.Get(o.Prev).Next = o.Next
		} else {
			*head = o.Next
		}
		if o.Next != common.None {
			e.orders.Get(o.Next).Prev = o.Prev
		}
		return
	}

	tree := e.bookFor(o.InstrumentIdx, o.Side)
	level := tree.FindLevel(o.Price)
	if level == nil {
		return
	}
	if o.Prev != common.None {
		e.orders.Get(o.Prev).Next = o.Next
	} else {
		level.head = o.Next
	}
	if o.Next != common.None {
		e.orders.Get(o.Next).Prev = o.Prev
	} else {
		level.tail = o.Prev
	}
	if level.totalQty >= o.Qty {
		level.totalQty -= o.Qty
	} else {
		level.totalQty = 0
	}
	level.orderCount--
	if level.orderCount <= 0 {
		tree.DeleteLevel(o.Price)
	}
	instr.BookSeqno++
}

// BestPrice returns the best LIVE price on side for an instrument and
// whether one exists. Buy's best is the highest bid; Sell's best is the
// lowest ask.
func (e *Engine) BestPrice(instrumentIdx uint16, side common.Side) (uint64, bool) {
	tree := e.bookFor(instrumentIdx, side)
	var lvl *priceLevel
	if side == common.Buy {
		lvl = tree.MaxLevel()
	} else {
		lvl = tree.MinLevel()
	}
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

// promotePending moves every PENDING order at or before the instrument's
// current epoch into its LIVE book, for both sides, in the order the orders
// were posted, implementing
// original_source's batch_open promotion.
func (e *Engine) promotePending(instrumentIdx uint16) int {
	instr := &e.instruments[instrumentIdx]
	promoted := 0
	for _, side := range []common.Side{common.Buy, common.Sell} {
		headField := instr.headForSide(side, true)
		// the pending list is newest-first: collect the eligible orders, then
		// promote them oldest-first so posting order carries into each level.
		var eligible []uint32
		for cur := *headField; cur != common.None; cur = e.orders.Get(cur).Next {
			if e.orders.Get(cur).EligibleEpoch <= instr.Epoch {
				eligible = append(eligible, cur)
			}
		}
		for i := len(eligible) - 1; i >= 0; i-- {
			cur := eligible[i]
			e.removeOrder(cur)
			e.orders.Get(cur).State = common.OrderLive
			e.insertOrder(cur)
			promoted++
		}
	}
	return promoted
}
