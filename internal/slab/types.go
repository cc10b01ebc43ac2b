package slab

import (
	"math/big"

	"percolator/internal/common"
)

// Capacities pinned from original_source/programs/common/src/types.rs.
const (
	MaxInstruments      = 32
	MaxAccounts         = 5_000
	MaxOrders           = 30_000
	MaxPositions        = 30_000
	MaxReservations     = 4_000
	MaxSlices           = 16_000
	MaxTrades           = 10_000
	MaxDLP              = 100
	MaxAggressorEntries = 4_000
	MaxSlabsInRegistry  = 256
)

// MaxCapTTLMs is the ceiling Reserve clamps a reservation's TTL to; it equals
// the Router's own capability TTL ceiling.
const MaxCapTTLMs uint64 = 120_000

// Account is the Slab-local view of an owner: cash balance and margin
// requirements are cached here and recomputed by the risk module; the
// position list is threaded through PositionHead.
type Account struct {
	Key          common.AccountKey
	Cash         *big.Int
	IM           *big.Int
	MM           *big.Int
	PositionHead uint32
	Index        uint32
	Active       bool
}

func (a *Account) NextFree() uint32     { return a.PositionHead }
func (a *Account) SetNextFree(n uint32) { a.PositionHead = n }

// Instrument is one fixed-capacity perpetual market inside a Slab.
type Instrument struct {
	Symbol          string
	ContractSize    uint64
	Tick            uint64
	Lot             uint64
	IndexPrice      uint64
	FundingRateBps  int64
	CumFunding      *big.Int
	LastFundingTs   uint64
	BidsHead        uint32
	AsksHead        uint32
	BidsPendingHead uint32
	AsksPendingHead uint32
	Epoch           uint16
	Index           uint16
	BatchOpenMs     uint64
	FreezeUntilMs   uint64
	// BookSeqno increments on every insert into or removal from either
	// side's LIVE book (promotion included); pending-list changes do not
	// bump it. Reservations record it as BookSeqnoAtHold; Commit does not
	// compare it.
	BookSeqno uint64
}

func (i *Instrument) headForSide(side common.Side, pending bool) *uint32 {
	switch {
	case side == common.Buy && !pending:
		return &i.BidsHead
	case side == common.Sell && !pending:
		return &i.AsksHead
	case side == common.Buy && pending:
		return &i.BidsPendingHead
	default:
		return &i.AsksPendingHead
	}
}

// Order is one resting or pending limit order, intrusively linked into its
// instrument/side/state book list and, when freed, into the order pool's
// free list via NextFree.
type Order struct {
	OrderID        uint64
	AccountIdx     uint32
	InstrumentIdx  uint16
	Side           common.Side
	TIF            common.TimeInForce
	MakerClass     common.MakerClass
	State          common.OrderState
	EligibleEpoch  uint16
	CreatedMs      uint64
	Price          uint64
	Qty            uint64
	ReservedQty    uint64
	QtyOrig        uint64
	Next           uint32
	Prev           uint32
	nextFree       uint32
	Used           bool
}

func (o *Order) NextFree() uint32     { return o.nextFree }
func (o *Order) SetNextFree(n uint32) { o.nextFree = n }

// Open returns the unreserved, still-matchable quantity.
func (o *Order) Open() uint64 {
	if o.ReservedQty >= o.Qty {
		return 0
	}
	return o.Qty - o.ReservedQty
}

// Position is one account's signed exposure in one instrument.
type Position struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Qty           int64
	EntryPx       uint64
	LastFunding   *big.Int
	NextInAccount uint32
	Index         uint32
	Used          bool
	nextFree      uint32
}

func (p *Position) NextFree() uint32     { return p.nextFree }
func (p *Position) SetNextFree(n uint32) { p.nextFree = n }

// Slice is one maker order's locked depth inside a Reservation, intrusively
// linked via Next into the reservation's slice list.
type Slice struct {
	OrderIdx uint32
	Qty      uint64
	Next     uint32
	Index    uint32
	Used     bool
	nextFree uint32
}

func (s *Slice) NextFree() uint32     { return s.nextFree }
func (s *Slice) SetNextFree(n uint32) { s.nextFree = n }

// Reservation is a two-phase hold produced by Reserve and redeemed (or
// released) by Commit/Cancel.
type Reservation struct {
	HoldID          uint64
	RouteID         uint64
	AccountIdx      uint32
	InstrumentIdx   uint16
	Side            common.Side
	Qty             uint64
	ReqQty          uint64
	LimitPx         uint64
	VWAPPx          uint64
	WorstPx         uint64
	MaxCharge       *big.Int
	CommitmentHash  [32]byte
	Salt            [16]byte
	BookSeqnoAtHold uint64
	MarkAtHold      uint64
	ExpiryMs        uint64
	SliceHead       uint32
	Index           uint32
	Used            bool
	Committed       bool
	nextFree        uint32
}

func (r *Reservation) NextFree() uint32     { return r.nextFree }
func (r *Reservation) SetNextFree(n uint32) { r.nextFree = n }

// Trade is one fill print retained in the fixed trade ring for replay and
// broadcast.
type Trade struct {
	Ts            uint64
	OrderIDMaker  uint64
	OrderIDTaker  uint64
	InstrumentIdx uint16
	Side          common.Side
	Price         uint64
	Qty           uint64
	Hash          [32]byte
	RevealMs      uint64
}

// AggressorEntry tracks one account's buy/sell flow in an instrument within
// the current epoch, feeding the optional Aggressor Roundtrip Guard.
type AggressorEntry struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Epoch         uint16
	BuyQty        uint64
	BuyNotional   *big.Int
	SellQty       uint64
	SellNotional  *big.Int
	Used          bool
	nextFree      uint32
}

func (a *AggressorEntry) NextFree() uint32     { return a.nextFree }
func (a *AggressorEntry) SetNextFree(n uint32) { a.nextFree = n }
