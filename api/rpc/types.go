package rpc

// Request/response shapes mirror spec.md §6.1 (Slab operations) and §6.2
// (Router operations) field for field; every identifier that is a UUID in
// Go (common.AccountKey/Mint/SlabID) crosses the wire as its string form
// since the JSON codec has no native 16-byte-array convention to lean on.

// ReserveRequest is spec.md §6.1's reserve: route_id, user, iidx, side,
// qty, limit_px, ttl_ms, commitment_hash.
type ReserveRequest struct {
	SlabID         string `json:"slab_id"`
	RouteID        uint64 `json:"route_id"`
	AccountIdx     uint32 `json:"account_idx"`
	InstrumentIdx  uint16 `json:"instrument_idx"`
	Side           uint8  `json:"side"`
	Qty            uint64 `json:"qty"`
	LimitPx        uint64 `json:"limit_px"`
	TTLMs          uint64 `json:"ttl_ms"`
	CommitmentHash []byte `json:"commitment_hash"`
}

// ReserveResponse is spec.md §6.1's reserve output: hold_id, vwap_px,
// worst_px, max_charge, expiry_ms, book_seqno.
type ReserveResponse struct {
	HoldID    uint64 `json:"hold_id"`
	VWAPPx    uint64 `json:"vwap_px"`
	WorstPx   uint64 `json:"worst_px"`
	MaxCharge string `json:"max_charge"`
	ExpiryMs  uint64 `json:"expiry_ms"`
	BookSeqno uint64 `json:"book_seqno"`
}

// CommitRequest is spec.md §6.1's commit: hold_id, cap_ref, salt16. CapRef
// is carried as its own JSON shape rather than the Go-internal
// common.CapabilityRef, since AmountMax/Remaining are *big.Int.
type CommitRequest struct {
	SlabID  string   `json:"slab_id"`
	HoldID  uint64   `json:"hold_id"`
	CapRef  CapRefDTO `json:"cap_ref"`
	Salt16  []byte   `json:"salt16"`
}

// CapRefDTO is the wire form of common.CapabilityRef.
type CapRefDTO struct {
	RouteID   uint64 `json:"route_id"`
	ScopeUser string `json:"scope_user"`
	ScopeSlab string `json:"scope_slab"`
	Mint      string `json:"mint"`
	AmountMax string `json:"amount_max"`
	Remaining string `json:"remaining"`
	ExpiryTs  uint64 `json:"expiry_ts"`
	Nonce     uint64 `json:"nonce"`
	Burned    bool   `json:"burned"`
}

// CommitResponse is spec.md §6.1's commit output: trade_count, total_charge.
type CommitResponse struct {
	TradeCount  uint64 `json:"trade_count"`
	TotalCharge string `json:"total_charge"`
	AvgPrice    uint64 `json:"avg_price"`
}

// CancelRequest is spec.md §6.1's cancel: hold_id.
type CancelRequest struct {
	SlabID string `json:"slab_id"`
	HoldID uint64 `json:"hold_id"`
}

// CancelResponse is spec.md §6.1's cancel output: ok.
type CancelResponse struct {
	Ok bool `json:"ok"`
}

// BatchOpenRequest is spec.md §6.1's batch_open: iidx, now_ms.
type BatchOpenRequest struct {
	SlabID        string `json:"slab_id"`
	InstrumentIdx uint16 `json:"instrument_idx"`
	NowMs         uint64 `json:"now_ms"`
}

// BatchOpenResponse answers batch_open with promoted_count, the number of
// pending orders promoted; the instrument's new epoch is not returned.
type BatchOpenResponse struct {
	PromotedCount int `json:"promoted_count"`
}

// LiquidationCallRequest is spec.md §6.1's liquidation_call: user,
// deficit. Only callable by the Router, which is enforced by routing this
// RPC through internal/router.LiquidateUser rather than directly to an
// Engine. Targets names the slabs/instruments the caller (a keeper process
// watching Portfolio exposures, mirroring how original_source's liquidator
// bot enumerates a user's open slabs off-chain) believes the user holds a
// position on; the Router has no reverse index from user to slab and does
// not enumerate this itself.
type LiquidationCallRequest struct {
	User      string                   `json:"user"`
	CurrentTs uint64                   `json:"current_ts"`
	Targets   []LiquidationTargetDTO   `json:"targets"`
}

// LiquidationTargetDTO names one slab/instrument a liquidation should be
// attempted against; SlabMM is that slab's share of the user's maintenance
// margin, used to pro-rate the deficit the way internal/router.LiquidateUser
// expects.
type LiquidationTargetDTO struct {
	SlabIdx       uint16 `json:"slab_idx"`
	SlabID        string `json:"slab_id"`
	InstrumentIdx uint16 `json:"instrument_idx"`
	SlabMM        string `json:"slab_mm"`
}

// LiquidationCallResponse is spec.md §6.1's liquidation_call output:
// residual.
type LiquidationCallResponse struct {
	Residual string `json:"residual"`
}

// DepositRequest/WithdrawRequest/PledgeRequest/UnpledgeRequest are
// spec.md §6.2's deposit/withdraw (vault<->user) and pledge/unpledge
// (vault<->escrow).
type DepositRequest struct {
	Mint   string `json:"mint"`
	Amount string `json:"amount"`
}

type WithdrawRequest struct {
	Mint   string `json:"mint"`
	Amount string `json:"amount"`
}

type PledgeRequest struct {
	User   string `json:"user"`
	SlabID string `json:"slab_id"`
	Mint   string `json:"mint"`
	Amount string `json:"amount"`
}

type UnpledgeRequest struct {
	User   string `json:"user"`
	SlabID string `json:"slab_id"`
	Mint   string `json:"mint"`
	Amount string `json:"amount"`
}

// VaultResponse reports a mint's available balance after a deposit,
// withdraw, pledge, or unpledge.
type VaultResponse struct {
	Available string `json:"available"`
}
