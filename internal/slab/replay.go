package slab

import (
	"bytes"
	"encoding/gob"
	"math/big"

	"percolator/internal/common"
)

// reserveWALArgs/commitWALArgs/cancelWALArgs/batchOpenWALArgs are the
// gob-encoded payloads behind RecordReserve/RecordCommit/RecordCancel/
// RecordBatchOpen. reserveWALArgs additionally carries the HoldID the
// original call was assigned, since ReplayWAL cannot assume a fresh
// Engine's nextHoldID counter will land on the same value the live engine
// produced (pool allocation failures and engine restarts can shift it) —
// replay instead remaps the logged HoldID to whatever the replayed Reserve
// call actually returns.
type reserveWALArgs struct {
	HoldID         uint64
	AccountIdx     uint32
	InstrumentIdx  uint16
	Side           uint8
	Qty            uint64
	LimitPx        uint64
	TTLMs          uint64
	CommitmentHash [32]byte
	RouteID        uint64
}

type commitWALArgs struct {
	HoldID uint64
	Cap    capWALArgs
	Salt   [16]byte
}

type capWALArgs struct {
	RouteID   uint64
	ScopeUser common.AccountKey
	ScopeSlab common.SlabID
	Mint      common.Mint
	AmountMax []byte
	Remaining []byte
	ExpiryTs  uint64
	Nonce     uint64
	Burned    bool
}

type cancelWALArgs struct {
	HoldID uint64
}

type batchOpenWALArgs struct {
	InstrumentIdx uint16
	NowMs         uint64
}

func gobEncode(v any) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes()
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

func toCapWALArgs(c common.CapabilityRef) capWALArgs {
	amountMax, _ := c.AmountMax.GobEncode()
	remaining, _ := c.Remaining.GobEncode()
	return capWALArgs{
		RouteID:   c.RouteID,
		ScopeUser: c.ScopeUser,
		ScopeSlab: c.ScopeSlab,
		Mint:      c.Mint,
		AmountMax: amountMax,
		Remaining: remaining,
		ExpiryTs:  c.ExpiryTs,
		Nonce:     c.Nonce,
		Burned:    c.Burned,
	}
}

func fromCapWALArgs(a capWALArgs) common.CapabilityRef {
	amountMax := new(big.Int)
	_ = amountMax.GobDecode(a.AmountMax)
	remaining := new(big.Int)
	_ = remaining.GobDecode(a.Remaining)
	return common.CapabilityRef{
		RouteID:   a.RouteID,
		ScopeUser: a.ScopeUser,
		ScopeSlab: a.ScopeSlab,
		Mint:      a.Mint,
		AmountMax: amountMax,
		Remaining: remaining,
		ExpiryTs:  a.ExpiryTs,
		Nonce:     a.Nonce,
		Burned:    a.Burned,
	}
}

// appendWAL is a no-op when no WAL is wired, mirroring Engine.Debit's
// nil-safe callback convention: unit tests and other callers that never set
// e.WAL pay nothing for this.
func (e *Engine) appendWAL(recType int32, args any) {
	if e.WAL == nil {
		return
	}
	_ = e.WAL.Append(recType, int64(e.CurrentTs), gobEncode(args))
}

// ReplayWAL re-applies every record logged in dir against a freshly
// constructed Engine (instruments and accounts already registered, WAL not
// yet wired) to rebuild in-memory reservation, order, and position state
// after a restart. Records are replayed through the same Reserve/Commit/
// Cancel/BatchOpen entry points a live caller uses, in the order they were
// written, so the resulting book and account state is reproduced by
// determinism of the single-threaded command loop rather than copied
// field-by-field. A Reserve record's logged HoldID is remapped to whatever
// HoldID the replayed call actually receives, since the two need not match
// bit-for-bit when a restart truncates a still-open reservation off the
// tail of the log.
func ReplayWAL(e *Engine, dir string) error {
	holdRemap := make(map[uint64]uint64)
	return Replay(dir, func(rec WALRecord) error {
		switch rec.Type {
		case RecordReserve:
			var a reserveWALArgs
			if err := gobDecode(rec.Payload, &a); err != nil {
				return err
			}
			res, cErr := e.Reserve(a.AccountIdx, a.InstrumentIdx, common.Side(a.Side), a.Qty, a.LimitPx, a.TTLMs, a.CommitmentHash, a.RouteID)
			if cErr == nil {
				holdRemap[a.HoldID] = res.HoldID
			}
		case RecordCommit:
			var a commitWALArgs
			if err := gobDecode(rec.Payload, &a); err != nil {
				return err
			}
			if holdID, ok := holdRemap[a.HoldID]; ok {
				_, _ = e.Commit(holdID, fromCapWALArgs(a.Cap), a.Salt)
			}
		case RecordCancel:
			var a cancelWALArgs
			if err := gobDecode(rec.Payload, &a); err != nil {
				return err
			}
			if holdID, ok := holdRemap[a.HoldID]; ok {
				_ = e.Cancel(holdID)
			}
		case RecordBatchOpen:
			var a batchOpenWALArgs
			if err := gobDecode(rec.Payload, &a); err != nil {
				return err
			}
			_, _ = e.BatchOpen(a.InstrumentIdx, a.NowMs)
		}
		return nil
	})
}
