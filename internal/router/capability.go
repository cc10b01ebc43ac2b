package router

import (
	"math/big"
	"sync"

	"percolator/internal/common"
)

// Capability is a single-use, scope-bound debit authorization minted by
// Reserve and consumed by Commit: the Slab never talks to the Vault/Escrow
// directly, it only ever redeems the Capability it was handed. Grounded on
// state/cap.rs's Cap (route_id/scope/amount_max/remaining/expiry/nonce/
// burned), with TTL clamped to MaxCapTTLMs the same way cap.rs clamps to
// MAX_CAP_TTL_MS in Cap::new.
type Capability struct {
	mu        sync.Mutex
	RouteID   uint64
	ScopeUser common.AccountKey
	ScopeSlab common.SlabID
	ScopeMint common.Mint
	AmountMax *big.Int
	Remaining *big.Int
	ExpiryTs  uint64
	Nonce     uint64
	Burned    bool
}

// NewCapability mints a capability scoped to (user, slab, mint) with amount
// amountMax, expiring capped-ttl milliseconds after currentTs.
func NewCapability(routeID uint64, user common.AccountKey, slab common.SlabID, mint common.Mint, amountMax *big.Int, currentTs, ttlMs uint64) *Capability {
	if ttlMs > MaxCapTTLMs {
		ttlMs = MaxCapTTLMs
	}
	return &Capability{
		RouteID:   routeID,
		ScopeUser: user,
		ScopeSlab: slab,
		ScopeMint: mint,
		AmountMax: new(big.Int).Set(amountMax),
		Remaining: new(big.Int).Set(amountMax),
		ExpiryTs:  currentTs + ttlMs,
	}
}

// IsExpired reports whether the capability has passed its expiry or already
// been burned, grounded on cap.rs's is_expired.
func (c *Capability) IsExpired(currentTs uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return currentTs > c.ExpiryTs || c.Burned
}

// ValidateScope reports whether (user, slab, mint) matches the capability's
// bound scope.
func (c *Capability) ValidateScope(user common.AccountKey, slab common.SlabID, mint common.Mint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ScopeUser == user && c.ScopeSlab == slab && c.ScopeMint == mint
}

// Debit validates expiry, scope, and remaining balance, then consumes
// amount from the capability atomically. Grounded on cap.rs's debit().
func (c *Capability) Debit(amount *big.Int, user common.AccountKey, slab common.SlabID, mint common.Mint, currentTs uint64) (*big.Int, *common.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if currentTs > c.ExpiryTs || c.Burned {
		return nil, common.New(common.CapExpired, "capability %d expired or burned", c.RouteID)
	}
	if !(c.ScopeUser == user && c.ScopeSlab == slab && c.ScopeMint == mint) {
		return nil, common.New(common.CapScopeMismatch, "capability %d scope mismatch", c.RouteID)
	}
	if c.Remaining.Cmp(amount) < 0 {
		return nil, common.New(common.InsufficientFunds, "capability %d remaining %s below requested %s", c.RouteID, c.Remaining, amount)
	}
	c.Remaining.Sub(c.Remaining, amount)
	c.Nonce++
	return new(big.Int).Set(c.Remaining), nil
}

// Burn permanently disables the capability, grounded on cap.rs's burn().
func (c *Capability) Burn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Burned = true
}

// Ref snapshots the capability into the read-only CapabilityRef a Slab
// engine needs, without handing the Slab a pointer into Router-owned state.
func (c *Capability) Ref() common.CapabilityRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.CapabilityRef{
		RouteID:   c.RouteID,
		ScopeUser: c.ScopeUser,
		ScopeSlab: c.ScopeSlab,
		Mint:      c.ScopeMint,
		AmountMax: new(big.Int).Set(c.AmountMax),
		Remaining: new(big.Int).Set(c.Remaining),
		ExpiryTs:  c.ExpiryTs,
		Nonce:     c.Nonce,
		Burned:    c.Burned,
	}
}
