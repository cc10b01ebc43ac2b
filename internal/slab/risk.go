package slab

import (
	"math/big"

	"percolator/internal/common"
)

// Equity computes cash + sum of unrealized PnL across every position minus
// accrued funding, grounded on original_source's calculate_equity.
func (e *Engine) Equity(accountIdx uint32) (*big.Int, *common.Error) {
	var result *big.Int
	var cErr *common.Error
	e.exec(func() {
		result, cErr = e.equityLocked(accountIdx)
	})
	return result, cErr
}

func (e *Engine) equityLocked(accountIdx uint32) (*big.Int, *common.Error) {
	account := e.accounts.Get(accountIdx)
	if account == nil || !account.Active {
		return nil, common.New(common.InvalidAccount, "account %d not active", accountIdx)
	}
	equity := new(big.Int).Set(account.Cash)
	for cur := account.PositionHead; cur != common.None; {
		p := e.positions.Get(cur)
		instr := &e.instruments[p.InstrumentIdx]
		pnl := common.PnL(p.Qty, p.EntryPx, instr.IndexPrice)
		funding := common.FundingPayment(p.Qty, instr.CumFunding, p.LastFunding)
		equity.Add(equity, pnl)
		equity.Sub(equity, funding)
		cur = p.NextInAccount
	}
	return equity, nil
}

// MarginRequirements sums IM and MM across every position at the current
// index price, grounded on original_source's calculate_margin_requirements.
func (e *Engine) MarginRequirements(accountIdx uint32) (im, mm *big.Int, cErr *common.Error) {
	e.exec(func() {
		im, mm, cErr = e.marginRequirementsLocked(accountIdx)
	})
	return im, mm, cErr
}

func (e *Engine) marginRequirementsLocked(accountIdx uint32) (*big.Int, *big.Int, *common.Error) {
	account := e.accounts.Get(accountIdx)
	if account == nil || !account.Active {
		return nil, nil, common.New(common.InvalidAccount, "account %d not active", accountIdx)
	}
	imTotal := big.NewInt(0)
	mmTotal := big.NewInt(0)
	for cur := account.PositionHead; cur != common.None; {
		p := e.positions.Get(cur)
		instr := &e.instruments[p.InstrumentIdx]
		imTotal.Add(imTotal, common.IM(p.Qty, instr.ContractSize, instr.IndexPrice, e.IMRBps))
		mmTotal.Add(mmTotal, common.MM(p.Qty, instr.ContractSize, instr.IndexPrice, e.MMRBps))
		cur = p.NextInAccount
	}
	return imTotal, mmTotal, nil
}

// CheckMarginPreTrade reports whether accountIdx retains sufficient equity
// to cover its current IM plus the IM delta of adding qtyDelta contracts in
// instrumentIdx, grounded on original_source's check_margin_pre_trade.
func (e *Engine) CheckMarginPreTrade(accountIdx uint32, instrumentIdx uint16, qtyDelta int64) (bool, *common.Error) {
	var ok bool
	var cErr *common.Error
	e.exec(func() {
		ok, cErr = e.checkMarginPreTradeLocked(accountIdx, instrumentIdx, qtyDelta)
	})
	return ok, cErr
}

func (e *Engine) checkMarginPreTradeLocked(accountIdx uint32, instrumentIdx uint16, qtyDelta int64) (bool, *common.Error) {
	equity, err := e.equityLocked(accountIdx)
	if err != nil {
		return false, err
	}
	currentIM, _, err := e.marginRequirementsLocked(accountIdx)
	if err != nil {
		return false, err
	}
	if int(instrumentIdx) >= e.numInstr {
		return false, common.New(common.InvalidInstrument, "instrument %d not registered", instrumentIdx)
	}
	instr := &e.instruments[instrumentIdx]
	currentQty := e.positionQty(accountIdx, instrumentIdx)
	newQty := currentQty + qtyDelta

	oldIM := common.IM(currentQty, instr.ContractSize, instr.IndexPrice, e.IMRBps)
	newIM := common.IM(newQty, instr.ContractSize, instr.IndexPrice, e.IMRBps)
	imDelta := new(big.Int).Sub(newIM, oldIM)
	totalIM := new(big.Int).Add(currentIM, imDelta)

	return equity.Cmp(totalIM) >= 0, nil
}

// IsLiquidatable reports whether accountIdx's equity has fallen below its
// maintenance margin requirement.
func (e *Engine) IsLiquidatable(accountIdx uint32) (bool, *common.Error) {
	var result bool
	var cErr *common.Error
	e.exec(func() {
		result, cErr = e.isLiquidatableLocked(accountIdx)
	})
	return result, cErr
}

func (e *Engine) positionQty(accountIdx uint32, instrumentIdx uint16) int64 {
	account := e.accounts.Get(accountIdx)
	if account == nil {
		return 0
	}
	for cur := account.PositionHead; cur != common.None; {
		p := e.positions.Get(cur)
		if p.InstrumentIdx == instrumentIdx {
			return p.Qty
		}
		cur = p.NextInAccount
	}
	return 0
}

// UpdateAccountMargin recomputes and caches IM/MM on the account record,
// grounded on original_source's update_account_margin.
func (e *Engine) UpdateAccountMargin(accountIdx uint32) *common.Error {
	var cErr *common.Error
	e.exec(func() {
		im, mm, err := e.marginRequirementsLocked(accountIdx)
		if err != nil {
			cErr = err
			return
		}
		account := e.accounts.Get(accountIdx)
		account.IM = im
		account.MM = mm
	})
	return cErr
}
