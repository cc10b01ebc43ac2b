// Package router implements the Percolator Router: collateral custody
// (Vault/Escrow), scoped debit capabilities, cross-slab portfolio margin,
// and the multi-slab reserve/commit/liquidate orchestration that ties
// Slab engines together. Grounded on
// original_source/programs/router/src/state/{vault,escrow,cap,registry,portfolio}.rs.
package router

import (
	"math/big"
	"sync"

	"percolator/internal/common"
)

// MaxSlabsInRegistry/MaxExposures mirror original_source's MAX_SLABS/
// MAX_INSTRUMENTS product, sized for a Go map-backed registry rather than a
// fixed on-chain array.
const (
	MaxSlabsInRegistry = 256
	MaxExposures       = 4096
)

// MaxCapTTLMs is the Router's own ceiling on a capability's TTL, grounded on
// cap.rs's MAX_CAP_TTL_MS. Kept as a router-local constant rather than
// imported from internal/slab so the two packages stay decoupled.
const MaxCapTTLMs uint64 = 120_000

// Vault holds one mint's pooled collateral for the whole Router, tracking
// how much of the deposited balance is currently pledged to escrows.
// Grounded on state/vault.rs's Vault (balance/total_pledged/available).
type Vault struct {
	mu            sync.Mutex
	Mint          common.Mint
	Balance       *big.Int
	TotalPledged  *big.Int
}

func newVault(mint common.Mint) *Vault {
	return &Vault{Mint: mint, Balance: big.NewInt(0), TotalPledged: big.NewInt(0)}
}

// Available returns balance not already pledged to an escrow.
func (v *Vault) Available() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.availableLocked()
}

func (v *Vault) availableLocked() *big.Int {
	return new(big.Int).Sub(v.Balance, v.TotalPledged)
}

// Deposit credits amount to the vault's balance.
func (v *Vault) Deposit(amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Balance.Add(v.Balance, amount)
}

// Withdraw debits amount from the vault if enough is unpledged.
func (v *Vault) Withdraw(amount *big.Int) *common.Error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.availableLocked().Cmp(amount) < 0 {
		return common.New(common.InsufficientFunds, "vault available %s below requested %s", v.availableLocked(), amount)
	}
	v.Balance.Sub(v.Balance, amount)
	return nil
}

// Pledge reserves amount against an escrow's backing, failing if the vault
// does not have enough unpledged balance.
func (v *Vault) Pledge(amount *big.Int) *common.Error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.availableLocked().Cmp(amount) < 0 {
		return common.New(common.InsufficientFunds, "vault available %s below pledge %s", v.availableLocked(), amount)
	}
	v.TotalPledged.Add(v.TotalPledged, amount)
	return nil
}

// Unpledge releases a previously pledged amount back to the available pool.
func (v *Vault) Unpledge(amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.TotalPledged.Sub(v.TotalPledged, amount)
	if v.TotalPledged.Sign() < 0 {
		v.TotalPledged.SetInt64(0)
	}
}

// Escrow is the (user, slab, mint) collateral pledge a Slab can draw
// against via a Capability. Grounded on state/escrow.rs's Escrow
// (balance/nonce/frozen).
type Escrow struct {
	mu       sync.Mutex
	User     common.AccountKey
	SlabID   common.SlabID
	Mint     common.Mint
	Balance  *big.Int
	Nonce    uint64
	Frozen   bool
}

func newEscrow(user common.AccountKey, slabID common.SlabID, mint common.Mint) *Escrow {
	return &Escrow{User: user, SlabID: slabID, Mint: mint, Balance: big.NewInt(0)}
}

// Credit adds amount to the escrow and bumps its anti-replay nonce.
func (es *Escrow) Credit(amount *big.Int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.Balance.Add(es.Balance, amount)
	es.Nonce++
}

// Debit removes amount from the escrow if unfrozen and sufficiently funded.
func (es *Escrow) Debit(amount *big.Int) *common.Error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.Frozen {
		return common.New(common.CapBurned, "escrow frozen")
	}
	if es.Balance.Cmp(amount) < 0 {
		return common.New(common.EscrowInsufficient, "escrow balance %s below requested %s", es.Balance, amount)
	}
	es.Balance.Sub(es.Balance, amount)
	es.Nonce++
	return nil
}

// Freeze/Unfreeze toggle the emergency halt flag, grounded on escrow.rs's
// freeze()/unfreeze().
func (es *Escrow) Freeze() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.Frozen = true
}

func (es *Escrow) Unfreeze() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.Frozen = false
}

// escrowKey identifies one (user, slab, mint) escrow triplet.
type escrowKey struct {
	user   common.AccountKey
	slabID common.SlabID
	mint   common.Mint
}

// SlabEntry is one registered Slab's governance-set risk parameters.
// Grounded on state/registry.rs's SlabEntry.
type SlabEntry struct {
	SlabID       common.SlabID
	VersionHash  [32]byte
	OracleID     string
	IMRBps       uint64
	MMRBps       uint64
	MakerFeeCapBps int64
	TakerFeeCapBps int64
	LatencySLAMs uint64
	MaxExposure  *big.Int
	RegisteredTs uint64
	Active       bool
}

// exposureKey identifies one (slab, instrument) cell of a user's portfolio.
type exposureKey struct {
	slabIdx       uint16
	instrumentIdx uint16
}

// Portfolio tracks one user's cross-slab margin state: aggregate equity/IM/
// MM and a sparse map of per-(slab, instrument) position quantities used to
// net exposures across slabs. Grounded on state/portfolio.rs's Portfolio,
// generalized from a fixed MAX_SLABS*MAX_INSTRUMENTS array to a Go map since
// Percolator's registry size is not a fixed on-chain account layout.
type Portfolio struct {
	mu              sync.Mutex
	User            common.AccountKey
	Equity          *big.Int
	IM              *big.Int
	MM              *big.Int
	FreeCollateral  *big.Int
	LastMarkTs      uint64
	exposures       map[exposureKey]int64
}

func newPortfolio(user common.AccountKey) *Portfolio {
	return &Portfolio{
		User:           user,
		Equity:         big.NewInt(0),
		IM:             big.NewInt(0),
		MM:             big.NewInt(0),
		FreeCollateral: big.NewInt(0),
		exposures:      make(map[exposureKey]int64),
	}
}

// UpdateExposure sets (or clears, if qty is zero) a user's position in one
// (slab, instrument) cell. Opening a new cell beyond MaxExposures is
// rejected rather than growing unbounded, mirroring the fixed-capacity
// MAX_SLABS*MAX_INSTRUMENTS array a Portfolio is sized to on-chain.
func (p *Portfolio) UpdateExposure(slabIdx, instrumentIdx uint16, qty int64) *common.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := exposureKey{slabIdx, instrumentIdx}
	if qty == 0 {
		delete(p.exposures, key)
		return nil
	}
	if _, exists := p.exposures[key]; !exists && len(p.exposures) >= MaxExposures {
		return common.New(common.PoolFull, "portfolio exposure table full at %d cells", MaxExposures)
	}
	p.exposures[key] = qty
	return nil
}

// Exposure returns the current position in one (slab, instrument) cell.
func (p *Portfolio) Exposure(slabIdx, instrumentIdx uint16) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exposures[exposureKey{slabIdx, instrumentIdx}]
}

// UpdateMargin recomputes free collateral against a new IM/MM pair.
func (p *Portfolio) UpdateMargin(im, mm *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IM, p.MM = im, mm
	p.FreeCollateral = new(big.Int).Sub(p.Equity, im)
}

// UpdateEquity recomputes free collateral against a new equity value.
func (p *Portfolio) UpdateEquity(equity *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Equity = equity
	p.FreeCollateral = new(big.Int).Sub(equity, p.IM)
}

// HasSufficientMargin reports equity >= IM.
func (p *Portfolio) HasSufficientMargin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Equity.Cmp(p.IM) >= 0
}

// IsAboveMaintenance reports equity >= MM.
func (p *Portfolio) IsAboveMaintenance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Equity.Cmp(p.MM) >= 0
}
