package router

import (
	"math/big"

	"percolator/internal/common"
	"percolator/internal/telemetry"
)

// LiquidationGraceMs is how long a user under maintenance margin is given
// to self-cure (deposit, close positions, hedge) before the Router forces
// closure, per spec.md §4.9's "attempt cross-slab position offsetting
// during grace window" step. Grounded on original_source's liquidate.rs
// comment naming a grace window with no concrete constant, so the value
// itself is this implementation's choice.
const LiquidationGraceMs = 30_000

// LiquidationTarget is one slab a liquidatable user holds a position on,
// the Router-side counterpart of SlabTarget scoped to liquidation.
type LiquidationTarget struct {
	SlabIdx       uint16
	Engine        slabEngine
	AccountIdx    uint32
	InstrumentIdx uint16
}

// slabEngine is the minimal surface LiquidationCall needs, kept as an
// unexported interface so this file does not force every Router caller to
// depend on internal/slab's concrete Engine type.
type slabEngine interface {
	LiquidationCall(accountIdx uint32, deficit *big.Int) (*big.Int, *common.Error)
}

// LiquidateUser implements spec.md §4.9/§4.8's liquidation coordination:
// detect equity below maintenance at the Portfolio level, and if the grace
// window since the last mark has elapsed, distribute the deficit pro rata
// (by each slab's share of the user's total maintenance margin) across
// every slab the user holds a position on, invoking each Engine's
// LiquidationCall. The sum of every slab's residual shortfall is returned
// for the caller to cover from an insurance fund or socialize.
func (r *Router) LiquidateUser(user common.AccountKey, currentTs uint64, targets []LiquidationTarget, slabMM map[uint16]*big.Int) (*big.Int, *common.Error) {
	p := r.Portfolio(user)
	p.mu.Lock()
	if p.Equity.Cmp(p.MM) >= 0 {
		p.mu.Unlock()
		telemetry.RecordLiquidation("rejected_above_mm")
		return nil, common.New(common.NotUnderMM, "user %s is above Router maintenance margin", user)
	}
	if currentTs < p.LastMarkTs+LiquidationGraceMs {
		p.mu.Unlock()
		telemetry.RecordLiquidation("rejected_grace_window")
		return nil, common.New(common.NotUnderMM, "user %s still within liquidation grace window", user)
	}
	deficit := new(big.Int).Sub(p.MM, p.Equity)
	p.mu.Unlock()

	totalMM := big.NewInt(0)
	for _, t := range targets {
		if mm, ok := slabMM[t.SlabIdx]; ok {
			totalMM.Add(totalMM, mm)
		}
	}

	totalResidual := big.NewInt(0)
	for _, t := range targets {
		share := deficit
		if totalMM.Sign() > 0 {
			if mm, ok := slabMM[t.SlabIdx]; ok {
				share = new(big.Int).Div(new(big.Int).Mul(deficit, mm), totalMM)
			}
		}
		residual, err := t.Engine.LiquidationCall(t.AccountIdx, share)
		if err != nil {
			continue // already above this slab's own MM — nothing to close here
		}
		totalResidual.Add(totalResidual, residual)
		_ = p.UpdateExposure(t.SlabIdx, t.InstrumentIdx, 0)
	}

	p.UpdateEquity(new(big.Int).Sub(p.Equity, totalResidual))
	telemetry.RecordLiquidation("closed")
	return totalResidual, nil
}
