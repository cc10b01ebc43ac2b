package router

import (
	"math/big"

	"percolator/internal/common"
)

// SafeDebit is the atomic five-step collateral debit spec.md §4.7 names:
// validate the capability's scope/expiry/burned state, check the escrow has
// enough balance, then debit capability and escrow together and burn the
// capability if it is now fully spent. All five steps succeed or none do —
// SafeDebit never partially applies a debit to one of (cap, escrow) and not
// the other.
func (r *Router) SafeDebit(routeID uint64, user common.AccountKey, slabID common.SlabID, mint common.Mint, amount *big.Int) (*big.Int, *common.Error) {
	cap, ok := r.Capability(routeID)
	if !ok {
		return nil, common.New(common.UnknownHold, "no capability for route %d", routeID)
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()

	if r.CurrentTs > cap.ExpiryTs || cap.Burned {
		return nil, common.New(common.CapExpired, "capability %d expired or burned", routeID)
	}
	if !(cap.ScopeUser == user && cap.ScopeSlab == slabID && cap.ScopeMint == mint) {
		return nil, common.New(common.CapScopeMismatch, "capability %d scope mismatch", routeID)
	}

	es := r.escrowFor(user, slabID, mint)
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.Frozen {
		return nil, common.New(common.CapBurned, "escrow frozen")
	}
	if amount.Cmp(cap.Remaining) > 0 {
		return nil, common.New(common.ChargeExceedsMax, "amount %s exceeds capability remaining %s", amount, cap.Remaining)
	}
	if amount.Cmp(es.Balance) > 0 {
		return nil, common.New(common.EscrowInsufficient, "amount %s exceeds escrow balance %s", amount, es.Balance)
	}

	cap.Remaining.Sub(cap.Remaining, amount)
	cap.Nonce++
	es.Balance.Sub(es.Balance, amount)
	es.Nonce++

	if cap.Remaining.Sign() == 0 {
		cap.Burned = true
	}

	r.logEvent(Event{Type: EventSafeDebit, RouteID: routeID, User: user.String(), SlabID: slabID.String(), Mint: mint.String(), Amount: amount.String()})
	if cap.Burned {
		r.logEvent(Event{Type: EventBurnCap, RouteID: routeID, User: user.String(), SlabID: slabID.String(), Mint: mint.String()})
	}

	return new(big.Int).Set(cap.Remaining), nil
}

// DebitCallback adapts SafeDebit to the slab.Engine.Debit callback shape,
// letting an internal/slab.Engine invoke the Router's atomic debit without
// internal/slab importing internal/router. Unlike SafeDebit itself, it
// takes no routeID: it recovers one from the presented CapabilityRef, so a
// single value (this method, bound to one Router) can be wired once into
// Engine.Debit at startup rather than re-wired per in-flight route.
func (r *Router) DebitCallback(cap common.CapabilityRef, amount *big.Int) (*big.Int, *common.Error) {
	return r.SafeDebit(cap.RouteID, cap.ScopeUser, cap.ScopeSlab, cap.Mint, amount)
}
