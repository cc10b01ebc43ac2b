package slab

import (
	"math/big"

	"percolator/internal/common"
	"percolator/internal/pool"
)

// Engine is one isolated perpetual market region: fixed pools for accounts,
// instruments, orders, positions, reservations, slices, an aggressor ledger,
// a trade ring, and one red-black tree of price levels per instrument side.
// All state-mutating operations run on the single goroutine that owns cmdCh
// (see run and exec below) — Engine's exported methods enqueue onto that goroutine and
// block for the result, so callers never need their own locking.
type Engine struct {
	SlabID common.SlabID

	accounts     *pool.Pool[Account, *Account]
	accountByKey map[common.AccountKey]uint32

	instruments [MaxInstruments]Instrument
	numInstr    int
	instrByName map[string]uint16

	orders       *pool.Pool[Order, *Order]
	positions    *pool.Pool[Position, *Position]
	reservations *pool.Pool[Reservation, *Reservation]
	resByHoldID  map[uint64]uint32
	slices       *pool.Pool[Slice, *Slice]
	aggressors   *pool.Pool[AggressorEntry, *AggressorEntry]

	trades *pool.TradeRing[Trade]

	books [MaxInstruments][2]*rbTree // [instrument][side]

	nextOrderID uint64
	nextHoldID  uint64

	// TakerFeeBps/MakerFeeBps are charged (or rebated, when MakerFeeBps is
	// negative) on notional at commit time, per original_source's
	// calculate_fee. CurrentTs is advanced by the caller (normally from the
	// oracle/clock collaborator) before each operation.
	TakerFeeBps int64
	MakerFeeBps int64
	CurrentTs   uint64

	// IMRBps/MMRBps are the initial- and maintenance-margin ratios applied
	// uniformly across every instrument in the risk module.
	IMRBps uint64
	MMRBps uint64

	// KillBandBps bounds how far the index price may have moved between
	// reserve and commit before commit rejects with KillBandTripped.
	KillBandBps uint64

	// Debit is invoked once per commit, after every local precondition
	// passes and before trades are applied, to perform the Router's
	// safe_debit against the presented capability. A nil Debit accepts
	// every charge unconditionally — useful for engine-only unit tests that
	// don't wire a Router.
	Debit func(cap common.CapabilityRef, amount *big.Int) (remaining *big.Int, err *common.Error)

	// WAL, when set, receives one record per successful reserve/commit/
	// cancel/batch_open so a restart can rebuild state with ReplayWAL. A
	// nil WAL (the default, and every engine-only unit test) pays nothing
	// for this.
	WAL *WAL

	// PartialFillAllowed / HideReservedDepth: Open Questions pinned in
	// SPEC_FULL.md §9. ARGMode controls whether the aggressor ledger clips
	// or taxes flip-flopping round trips within an epoch.
	PartialFillAllowed bool
	HideReservedDepth  bool
	ARGMode            ARGPolicy

	cmdCh chan func()
	done  chan struct{}
}

type ARGPolicy uint8

const (
	ARGOff ARGPolicy = iota
	ARGClip
	ARGTax
)

// NewEngine allocates a Slab engine with every pool sized to its pinned
// capacity and starts its single command-processing goroutine.
func NewEngine(id common.SlabID) *Engine {
	e := &Engine{
		SlabID:             id,
		accountByKey:       make(map[common.AccountKey]uint32, MaxAccounts),
		instrByName:        make(map[string]uint16, MaxInstruments),
		resByHoldID:        make(map[uint64]uint32, MaxReservations),
		PartialFillAllowed: true,
		HideReservedDepth:  true,
		ARGMode:            ARGOff,
		cmdCh:              make(chan func(), 256),
		done:               make(chan struct{}),
	}
	e.accounts = pool.New[Account, *Account](MaxAccounts, func(a *Account) {
		a.Cash, a.IM, a.MM = big.NewInt(0), big.NewInt(0), big.NewInt(0)
	})
	e.orders = pool.New[Order, *Order](MaxOrders, nil)
	e.positions = pool.New[Position, *Position](MaxPositions, func(p *Position) {
		p.LastFunding = big.NewInt(0)
	})
	e.reservations = pool.New[Reservation, *Reservation](MaxReservations, func(r *Reservation) {
		r.MaxCharge = big.NewInt(0)
	})
	e.slices = pool.New[Slice, *Slice](MaxSlices, nil)
	e.aggressors = pool.New[AggressorEntry, *AggressorEntry](MaxAggressorEntries, func(a *AggressorEntry) {
		a.BuyNotional, a.SellNotional = big.NewInt(0), big.NewInt(0)
	})
	e.trades = pool.NewTradeRing[Trade](MaxTrades)
	for i := range e.books {
		e.books[i][0] = newRBTree()
		e.books[i][1] = newRBTree()
	}
	go e.run()
	return e
}

// Close stops the engine's command loop.
func (e *Engine) Close() { close(e.done) }

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.cmdCh:
			fn()
		case <-e.done:
			return
		}
	}
}

// exec runs fn on the engine's owning goroutine and waits for it to finish,
// giving every mutation the same single-goroutine-per-shard serialization.
func (e *Engine) exec(fn func()) {
	done := make(chan struct{})
	e.cmdCh <- func() {
		fn()
		close(done)
	}
	<-done
}

// AddInstrument registers a new market. Returns the existing index if the
// symbol is already registered, or 0xFFFF if the instrument table is full.
func (e *Engine) AddInstrument(symbol string, contractSize, tick, lot, indexPrice uint64) uint16 {
	var idx uint16 = 0xFFFF
	e.exec(func() {
		if _, ok := e.instrByName[symbol]; ok {
			idx = e.instrByName[symbol]
			return
		}
		if e.numInstr >= MaxInstruments {
			return
		}
		i := uint16(e.numInstr)
		e.numInstr++
		e.instruments[i] = Instrument{
			Symbol:       symbol,
			ContractSize: contractSize,
			Tick:         tick,
			Lot:          lot,
			IndexPrice:   indexPrice,
			CumFunding:   big.NewInt(0),
			BidsHead:     common.None,
			AsksHead:     common.None,
			BidsPendingHead: common.None,
			AsksPendingHead: common.None,
			Index:        i,
		}
		e.instrByName[symbol] = i
		idx = i
	})
	return idx
}

// AddAccount registers an owner, returning its pool index or common.None if
// the account pool is full.
func (e *Engine) AddAccount(key common.AccountKey) uint32 {
	var idx uint32 = common.None
	e.exec(func() {
		if existing, ok := e.accountByKey[key]; ok {
			idx = existing
			return
		}
		i := e.accounts.Alloc()
		if i == common.None {
			return
		}
		a := e.accounts.Get(i)
		a.Key = key
		a.Cash = big.NewInt(0)
		a.IM = big.NewInt(0)
		a.MM = big.NewInt(0)
		a.PositionHead = common.None
		a.Index = i
		a.Active = true
		e.accountByKey[key] = i
		idx = i
	})
	return idx
}
