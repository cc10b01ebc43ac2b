package router

import (
	"math/big"

	"golang.org/x/sync/errgroup"

	"percolator/internal/common"
	"percolator/internal/slab"
)

// SlabTarget pairs a registered Slab engine with the account and instrument
// index the orchestrator should reserve against on it. SlabIdx is the
// compact registry index Portfolio.UpdateExposure keys exposures by,
// distinct from the full common.SlabID used everywhere else.
type SlabTarget struct {
	SlabID        common.SlabID
	SlabIdx       uint16
	Engine        *slab.Engine
	AccountIdx    uint32
	InstrumentIdx uint16
}

// reserveLeg is one candidate slab's reserve outcome, gathered in the
// parallel fan-out step of MultiReserve.
type reserveLeg struct {
	target SlabTarget
	result *slab.ReserveResult
}

// MultiReserveResult is the outcome of fanning a route out across multiple
// slabs: the chosen legs (each already holding an open reservation) and the
// aggregate quantity/VWAP achieved.
type MultiReserveResult struct {
	RouteID   uint64
	Legs      []MultiReserveLeg
	FilledQty uint64
	AggVWAPPx uint64
}

// MultiReserveLeg is one slab's contribution to a multi-slab route.
type MultiReserveLeg struct {
	SlabID        common.SlabID
	SlabIdx       uint16
	Engine        *slab.Engine
	InstrumentIdx uint16
	HoldID        uint64
	FilledQty     uint64
	VWAPPx        uint64
	MaxCharge     *big.Int
}

// MultiReserve implements spec.md §4.9 steps 1-2: issue reserve on every
// candidate slab in parallel (via golang.org/x/sync/errgroup), then
// greedily accept legs in the order given until qty is covered. Legs not
// selected are cancelled immediately so they never hold book depth
// hostage. commitmentHash is
// called once per candidate leg with the route ID this call allocates, so
// the caller's hash embeds the same route ID Commit will later recompute
// it against.
func (r *Router) MultiReserve(side common.Side, qty, limitPx, ttlMs uint64, targets []SlabTarget, commitmentHash func(routeID uint64, slabID common.SlabID) [32]byte) (*MultiReserveResult, *common.Error) {
	r.mu.Lock()
	routeID := r.nextRouteID
	r.nextRouteID++
	r.mu.Unlock()

	r.logEvent(Event{Type: EventBeginRoute, RouteID: routeID})

	legs := make([]reserveLeg, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			res, err := t.Engine.Reserve(t.AccountIdx, t.InstrumentIdx, side, qty, limitPx, ttlMs, commitmentHash(routeID, t.SlabID), routeID)
			if err != nil {
				return nil // a failed leg is simply not a candidate, not a fatal error
			}
			legs[i] = reserveLeg{target: t, result: res}
			return nil
		})
	}
	_ = g.Wait()

	var chosen []MultiReserveLeg
	var filled uint64
	totalNotional := big.NewInt(0)

	for _, leg := range legs {
		if leg.result == nil || filled >= qty {
			continue
		}
		chosen = append(chosen, MultiReserveLeg{
			SlabID:        leg.target.SlabID,
			SlabIdx:       leg.target.SlabIdx,
			Engine:        leg.target.Engine,
			InstrumentIdx: leg.target.InstrumentIdx,
			HoldID:        leg.result.HoldID,
			FilledQty:     leg.result.FilledQty,
			VWAPPx:        leg.result.VWAPPx,
			MaxCharge:     leg.result.MaxCharge,
		})
		filled += leg.result.FilledQty
		totalNotional.Add(totalNotional, common.MulU64(leg.result.FilledQty, leg.result.VWAPPx))
	}

	// cancel every reserved-but-unchosen leg so its depth is released.
	for _, leg := range legs {
		if leg.result == nil {
			continue
		}
		stillChosen := false
		for _, c := range chosen {
			if c.HoldID == leg.result.HoldID && c.SlabID == leg.target.SlabID {
				stillChosen = true
				break
			}
		}
		if !stillChosen {
			leg.target.Engine.Cancel(leg.result.HoldID)
		}
	}

	aggVWAP := uint64(0)
	if filled > 0 {
		aggVWAP = common.VWAP(totalNotional, filled)
	}

	return &MultiReserveResult{RouteID: routeID, Legs: chosen, FilledQty: filled, AggVWAPPx: aggVWAP}, nil
}

// MultiCommit implements spec.md §4.9 steps 3-5: pledge escrow and mint one
// Capability per chosen leg, then commit legs one at a time. If a leg's
// commit fails, every leg that has NOT yet committed is unwound (hold
// cancelled, its escrow unpledged, its capability burned) while legs that
// already committed are left exactly as committed: spec.md calls this out
// explicitly as logical atomicity, not a cross-slab transaction, so an
// already-filled leg's position and debit are never reversed. Portfolio
// exposure is updated for every leg that did commit, win or lose overall.
func (r *Router) MultiCommit(user common.AccountKey, mint common.Mint, result *MultiReserveResult, salts map[common.SlabID][16]byte) *common.Error {
	type pledged struct {
		leg MultiReserveLeg
		cap *Capability
	}
	pledges := make([]pledged, 0, len(result.Legs))

	unwind := func(p pledged) {
		p.cap.Burn()
		r.forgetCapability(p.cap.RouteID)
		p.leg.Engine.Cancel(p.leg.HoldID)
		r.Unpledge(user, p.leg.SlabID, mint, p.leg.MaxCharge)
	}

	for _, leg := range result.Legs {
		if err := r.Pledge(user, leg.SlabID, mint, leg.MaxCharge); err != nil {
			for _, p := range pledges {
				unwind(p)
			}
			return err
		}
		cap := r.MintCapability(user, leg.SlabID, mint, leg.MaxCharge, MaxCapTTLMs)
		pledges = append(pledges, pledged{leg, cap})
	}

	portfolio := r.Portfolio(user)
	var firstErr *common.Error
	for _, p := range pledges {
		if firstErr != nil {
			unwind(p)
			continue
		}
		if _, err := p.leg.Engine.Commit(p.leg.HoldID, p.cap.Ref(), salts[p.leg.SlabID]); err != nil {
			firstErr = err
			unwind(p)
			continue
		}
		_ = portfolio.UpdateExposure(p.leg.SlabIdx, p.leg.InstrumentIdx, int64(p.leg.FilledQty))
		r.logEvent(Event{Type: EventUpdatePortfolioOnTrade, RouteID: result.RouteID, User: user.String(), SlabID: p.leg.SlabID.String()})
		if p.cap.Remaining.Sign() == 0 {
			r.forgetCapability(p.cap.RouteID)
		}
	}
	r.logEvent(Event{Type: EventEndRoute, RouteID: result.RouteID, User: user.String()})
	return firstErr
}
