package slab

import "percolator/internal/common"

// BatchOpen advances instrumentIdx's epoch and promotes every eligible
// PENDING order to LIVE. This is the anti-toxicity mechanism: regular-class
// orders wait one batch before becoming matchable, while DLP orders post
// straight to LIVE. Grounded on original_source's process_batch_open.
func (e *Engine) BatchOpen(instrumentIdx uint16, currentTs uint64) (promoted int, cErr *common.Error) {
	if currentTs == 0 {
		return 0, common.New(common.InvalidInstruction, "current_ts must be nonzero")
	}
	e.exec(func() {
		if int(instrumentIdx) >= e.numInstr {
			cErr = common.New(common.InvalidInstrument, "instrument %d not registered", instrumentIdx)
			return
		}
		instr := &e.instruments[instrumentIdx]
		instr.BatchOpenMs = currentTs
		instr.Epoch++
		promoted = e.promotePending(instrumentIdx)
		e.appendWAL(RecordBatchOpen, batchOpenWALArgs{InstrumentIdx: instrumentIdx, NowMs: currentTs})
	})
	return promoted, cErr
}
