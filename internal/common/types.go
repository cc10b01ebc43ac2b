// Package common holds types, fixed-point math, and the error taxonomy
// shared by the Slab engine and the Router.
package common

import (
	"math/big"

	"github.com/google/uuid"
)

// None is the sentinel index meaning "no slot" across every intrusive
// link field in the Slab's fixed pools. 32-bit indices never relocate;
// None is reserved and never a valid allocated index.
const None uint32 = 1<<32 - 1

// AccountKey identifies an owner across Router and Slab state. The Rust
// original keys accounts by a 32-byte on-chain public key; Percolator is a
// host-agnostic Go port and uses a UUID in its place.
type AccountKey = uuid.UUID

// Mint identifies a settlement asset (e.g. a collateral token).
type Mint = uuid.UUID

// SlabID identifies a slab engine within the Router's registry.
type SlabID = uuid.UUID

// Side is the resting/aggressing direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the contra side used when walking the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls how an unfilled remainder is handled.
type TimeInForce uint8

const (
	TIFGTC TimeInForce = iota // good-till-cancel (rests on the book)
	TIFIOC                    // immediate-or-cancel
	TIFFOK                    // fill-or-kill
)

// MakerClass distinguishes designated LPs (immediate posting rights) from
// regular makers (subject to pending -> live promotion at batch_open).
type MakerClass uint8

const (
	MakerRegular MakerClass = iota
	MakerDLP
)

// OrderState is LIVE (matchable) or PENDING (awaiting batch promotion).
type OrderState uint8

const (
	OrderPending OrderState = iota
	OrderLive
)

// CapabilityRef is the read-only view of a Router capability a Slab needs at
// commit time: just enough to validate scope/expiry/burned/remaining and
// request a debit, without the Slab importing the Router package directly.
type CapabilityRef struct {
	RouteID   uint64
	ScopeUser AccountKey
	ScopeSlab SlabID
	Mint      Mint
	AmountMax *big.Int
	Remaining *big.Int
	ExpiryTs  uint64
	Nonce     uint64
	Burned    bool
}
