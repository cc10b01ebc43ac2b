package slab

import (
	"math/big"

	"percolator/internal/common"
)

// LiquidationCall forcibly closes accountIdx's positions at current index
// prices to cover deficit, callable only by the Router (enforced by the
// caller, not the Slab — the Slab has no notion of its own caller identity).
// Returns the residual shortfall still owed after closing every position,
// which the Router must then make up from insurance funds or socialized
// loss, per spec.md §6.1's liquidation_call row.
func (e *Engine) LiquidationCall(accountIdx uint32, deficit *big.Int) (residual *big.Int, cErr *common.Error) {
	e.exec(func() {
		residual, cErr = e.liquidationCallLocked(accountIdx, deficit)
	})
	return residual, cErr
}

func (e *Engine) liquidationCallLocked(accountIdx uint32, deficit *big.Int) (*big.Int, *common.Error) {
	liquidatable, err := e.isLiquidatableLocked(accountIdx)
	if err != nil {
		return nil, err
	}
	if !liquidatable {
		return nil, common.New(common.NotUnderMM, "account %d is above maintenance margin", accountIdx)
	}

	account := e.accounts.Get(accountIdx)
	for cur := account.PositionHead; cur != common.None; {
		p := e.positions.Get(cur)
		next := p.NextInAccount
		instr := &e.instruments[p.InstrumentIdx]

		pnl := common.PnL(p.Qty, p.EntryPx, instr.IndexPrice)
		account.Cash.Add(account.Cash, pnl)
		e.removePosition(accountIdx, cur)

		cur = next
	}

	residual := new(big.Int).Sub(deficit, account.Cash)
	if residual.Sign() < 0 {
		residual = big.NewInt(0)
	}
	return residual, nil
}

func (e *Engine) isLiquidatableLocked(accountIdx uint32) (bool, *common.Error) {
	equity, err := e.equityLocked(accountIdx)
	if err != nil {
		return false, err
	}
	_, mm, err := e.marginRequirementsLocked(accountIdx)
	if err != nil {
		return false, err
	}
	return equity.Cmp(mm) < 0, nil
}
