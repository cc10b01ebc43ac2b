package router

import (
	"math/big"

	"percolator/internal/common"
)

// ExposureCell names one (slab, instrument) position cell of a Portfolio,
// the exported counterpart of the package-private exposureKey so callers
// outside this package (the oracle/mark-price integration the Router
// depends on but does not itself implement, per spec.md's out-of-scope
// external collaborators) can describe which cells to net together.
type ExposureCell struct {
	SlabIdx       uint16
	InstrumentIdx uint16
}

// MarkInfo is the oracle symbol and current mark price backing one
// ExposureCell, supplied by the caller for each cell it wants folded into
// a RecomputeRouterIM call. A cell missing from the map is excluded from
// the netting sum rather than rejected outright, since a slab can be
// deregistered out from under a user's still-open position.
type MarkInfo struct {
	OracleID string
	MarkPx   uint64
}

// RecomputeRouterIM implements spec.md §4.8's cross-slab netting: exposures
// across slabs sharing the same underlying symbol (same OracleID) are
// netted into one signed quantity per symbol before applying margin, so
// offsetting positions on two slabs quoting the same underlying do not
// each consume separate initial margin. IM_router = Σ_symbol |net_qty| ·
// mark · imrGlobalBps, a non-strict lower bound of the naive per-slab IM
// sum since netting can only reduce, never inflate, the aggregate. The
// result is not stored; callers feed it to UpdateMargin alongside the
// maintenance-margin figure they compute the same way.
func (p *Portfolio) RecomputeRouterIM(marks map[ExposureCell]MarkInfo, imrGlobalBps uint64) *big.Int {
	p.mu.Lock()
	netBySymbol := make(map[string]int64, len(marks))
	markBySymbol := make(map[string]uint64, len(marks))
	for key, qty := range p.exposures {
		info, ok := marks[ExposureCell{SlabIdx: key.slabIdx, InstrumentIdx: key.instrumentIdx}]
		if !ok {
			continue
		}
		netBySymbol[info.OracleID] += qty
		markBySymbol[info.OracleID] = info.MarkPx
	}
	p.mu.Unlock()

	im := big.NewInt(0)
	bps := big.NewInt(int64(imrGlobalBps))
	for symbol, net := range netBySymbol {
		abs := net
		if abs < 0 {
			abs = -abs
		}
		notional := common.MulU64(uint64(abs), markBySymbol[symbol])
		contribution := new(big.Int).Mul(notional, bps)
		contribution.Div(contribution, big.NewInt(10_000))
		im.Add(im, contribution)
	}
	return im
}

// SymbolMarks resolves a set of ExposureCells to their registry-declared
// oracle symbol, pairing each with the mark price the caller already
// fetched for that symbol. It lets callers build the map RecomputeRouterIM
// needs from a plain symbol->mark price table instead of repeating the
// registry lookup per cell.
func (r *Router) SymbolMarks(cells map[ExposureCell]common.SlabID, marksBySymbol map[string]uint64) map[ExposureCell]MarkInfo {
	out := make(map[ExposureCell]MarkInfo, len(cells))
	for cell, slabID := range cells {
		entry, ok := r.Registry.Find(slabID)
		if !ok {
			continue
		}
		mark, ok := marksBySymbol[entry.OracleID]
		if !ok {
			continue
		}
		out[cell] = MarkInfo{OracleID: entry.OracleID, MarkPx: mark}
	}
	return out
}
