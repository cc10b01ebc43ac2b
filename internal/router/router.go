package router

import (
	"math/big"
	"sync"

	"percolator/internal/common"
	"percolator/internal/slab"
	"percolator/internal/telemetry"
)

// Router owns collateral custody and cross-slab orchestration: one Vault
// per mint, one Escrow per (user, slab, mint), one Portfolio per user, a
// Registry of known Slabs, and the live Capabilities minted by in-flight
// reserve routes. It never touches a Slab's internal order book directly —
// every interaction crosses the Reserve/Commit/Cancel surface and the
// Debit callback a Slab invokes during Commit.
type Router struct {
	mu sync.RWMutex

	vaults     map[common.Mint]*Vault
	escrows    map[escrowKey]*Escrow
	portfolios map[common.AccountKey]*Portfolio
	caps       map[uint64]*Capability // keyed by RouteID

	Registry *Registry

	// EventLog, when set, receives the events listed in spec.md §4.7 as
	// Router operations occur. It is optional: a Router used only in tests
	// or in an embedded/offline mode need not wire one.
	EventLog *EventLog

	nextRouteID uint64

	// CurrentTs is advanced by the caller before each operation, the same
	// convention slab.Engine uses.
	CurrentTs uint64
}

// logEvent is a best-effort emit: a Router with no EventLog wired is a
// no-op, and a failed Append (outbox write error) is swallowed rather than
// propagated, since event delivery is never allowed to block or fail the
// collateral operation that produced it.
func (r *Router) logEvent(ev Event) {
	if r.EventLog == nil {
		return
	}
	ev.V = 1
	ev.Ts = r.CurrentTs
	_ = r.EventLog.Append(ev)
	telemetry.RecordRouteEvent(ev.Type)
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		vaults:     make(map[common.Mint]*Vault),
		escrows:    make(map[escrowKey]*Escrow),
		portfolios: make(map[common.AccountKey]*Portfolio),
		caps:       make(map[uint64]*Capability),
		Registry:   NewRegistry(),
	}
}

// Wire attaches this Router's atomic debit to a Slab engine's Commit path.
// Call it once, right after slab.NewEngine and before the engine is handed
// to any concurrent caller: Engine.Debit is a plain field, not guarded by
// the engine's own command channel, so it must be set before the engine's
// run loop can be observed from another goroutine, the same one-time
// wiring convention NewEngine's other exported fields (TakerFeeBps,
// IMRBps, ...) already use.
func (r *Router) Wire(engine *slab.Engine) {
	engine.Debit = r.DebitCallback
}

func (r *Router) vaultFor(mint common.Mint) *Vault {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vaults[mint]
	if !ok {
		v = newVault(mint)
		r.vaults[mint] = v
	}
	return v
}

func (r *Router) escrowFor(user common.AccountKey, slabID common.SlabID, mint common.Mint) *Escrow {
	key := escrowKey{user, slabID, mint}
	r.mu.Lock()
	defer r.mu.Unlock()
	es, ok := r.escrows[key]
	if !ok {
		es = newEscrow(user, slabID, mint)
		r.escrows[key] = es
	}
	return es
}

// VaultAvailable reports a mint's balance not already pledged to an
// escrow, for callers (api/rpc) that only need a read after a mutation.
func (r *Router) VaultAvailable(mint common.Mint) *big.Int {
	return r.vaultFor(mint).Available()
}

// Portfolio returns (creating if needed) a user's cross-slab portfolio.
func (r *Router) Portfolio(user common.AccountKey) *Portfolio {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portfolios[user]
	if !ok {
		p = newPortfolio(user)
		r.portfolios[user] = p
	}
	return p
}

// Deposit credits amount to mint's vault balance, grounded on
// instructions/deposit.rs.
func (r *Router) Deposit(mint common.Mint, amount *big.Int) *common.Error {
	if amount.Sign() <= 0 {
		return common.New(common.InsufficientFunds, "deposit amount must be positive")
	}
	r.vaultFor(mint).Deposit(amount)
	r.logEvent(Event{Type: EventDeposit, Mint: mint.String(), Amount: amount.String()})
	return nil
}

// Withdraw debits amount from mint's vault balance, failing if not enough
// is unpledged, grounded on instructions/withdraw.rs.
func (r *Router) Withdraw(mint common.Mint, amount *big.Int) *common.Error {
	if amount.Sign() <= 0 {
		return common.New(common.InsufficientFunds, "withdraw amount must be positive")
	}
	if err := r.vaultFor(mint).Withdraw(amount); err != nil {
		return err
	}
	r.logEvent(Event{Type: EventWithdraw, Mint: mint.String(), Amount: amount.String()})
	return nil
}

// Pledge moves amount from a mint's vault into a (user, slab, mint) escrow
// ahead of a reserve route, grounded on §4.7's "Router increments on pledge
// (before a reserve route)".
func (r *Router) Pledge(user common.AccountKey, slabID common.SlabID, mint common.Mint, amount *big.Int) *common.Error {
	v := r.vaultFor(mint)
	if err := v.Pledge(amount); err != nil {
		return err
	}
	r.escrowFor(user, slabID, mint).Credit(amount)
	r.logEvent(Event{Type: EventPledge, User: user.String(), SlabID: slabID.String(), Mint: mint.String(), Amount: amount.String()})
	return nil
}

// Unpledge reverses a Pledge that was never consumed by safe_debit — used
// by orchestrator rollback and by the Unpledge RPC.
func (r *Router) Unpledge(user common.AccountKey, slabID common.SlabID, mint common.Mint, amount *big.Int) *common.Error {
	es := r.escrowFor(user, slabID, mint)
	if err := es.Debit(amount); err != nil {
		return err
	}
	r.vaultFor(mint).Unpledge(amount)
	r.logEvent(Event{Type: EventUnpledge, User: user.String(), SlabID: slabID.String(), Mint: mint.String(), Amount: amount.String()})
	return nil
}

// MintCapability creates and registers a new Capability for a reserve
// route, scoped to (user, slab, mint) with amount amountMax.
func (r *Router) MintCapability(user common.AccountKey, slabID common.SlabID, mint common.Mint, amountMax *big.Int, ttlMs uint64) *Capability {
	r.mu.Lock()
	routeID := r.nextRouteID
	r.nextRouteID++
	r.mu.Unlock()

	cap := NewCapability(routeID, user, slabID, mint, amountMax, r.CurrentTs, ttlMs)

	r.mu.Lock()
	r.caps[routeID] = cap
	r.mu.Unlock()
	r.logEvent(Event{Type: EventMintCap, RouteID: routeID, User: user.String(), SlabID: slabID.String(), Mint: mint.String(), Amount: amountMax.String()})
	return cap
}

// Capability looks up a previously minted capability by route ID.
func (r *Router) Capability(routeID uint64) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[routeID]
	return c, ok
}

// forgetCapability removes a spent or cancelled capability from the live
// map; the record itself is not reused (at-most-once semantics rely on
// cap.nonce while it's live, per spec.md §4.9).
func (r *Router) forgetCapability(routeID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, routeID)
}
