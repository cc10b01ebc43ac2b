package slab

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record types mirror the state-mutating Slab operations; every one is
// appended after the operation has succeeded in memory (see appendWAL).
const (
	RecordReserve   = 1
	RecordCommit    = 2
	RecordCancel    = 3
	RecordBatchOpen = 4
)

// WALRecord is one CRC32-checksummed, length-prefixed binary entry: type +
// time + length-prefixed payload + trailing CRC32 (see DESIGN.md).
type WALRecord struct {
	Type    int32
	TimeMs  int64
	Payload []byte
}

func encodeWALRecord(r WALRecord) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.Type)
	binary.Write(buf, binary.LittleEndian, r.TimeMs)
	binary.Write(buf, binary.LittleEndian, uint32(len(r.Payload)))
	buf.Write(r.Payload)
	sum := crc32.ChecksumIEEE(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

func decodeWALRecord(r io.Reader) (WALRecord, error) {
	var rec WALRecord
	var payloadLen uint32
	if err := binary.Read(r, binary.LittleEndian, &rec.Type); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.TimeMs); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return rec, err
	}
	rec.Payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(r, rec.Payload); err != nil {
		return rec, err
	}
	var wantCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &wantCRC); err != nil {
		return rec, err
	}
	check := new(bytes.Buffer)
	binary.Write(check, binary.LittleEndian, rec.Type)
	binary.Write(check, binary.LittleEndian, rec.TimeMs)
	binary.Write(check, binary.LittleEndian, payloadLen)
	check.Write(rec.Payload)
	if crc32.ChecksumIEEE(check.Bytes()) != wantCRC {
		return rec, fmt.Errorf("wal: crc mismatch")
	}
	return rec, nil
}

// WAL is a segment-rotating append-only log: once the active segment
// exceeds maxSegmentBytes or maxSegmentAge, it is closed and a new segment
// file opened. Replay walks every segment in filename order from the
// beginning.
type WAL struct {
	mu              sync.Mutex
	dir             string
	maxSegmentBytes int64
	maxSegmentAge   time.Duration
	segmentOpened   time.Time

	file       *os.File
	bytesWritten int64
	segmentSeq int
}

// OpenWAL opens (creating if needed) the WAL directory and starts a fresh
// active segment.
func OpenWAL(dir string, maxSegmentBytes int64, maxSegmentAge time.Duration) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &WAL{dir: dir, maxSegmentBytes: maxSegmentBytes, maxSegmentAge: maxSegmentAge}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) rotate() error {
	if w.file != nil {
		w.file.Close()
	}
	w.segmentSeq++
	name := filepath.Join(w.dir, fmt.Sprintf("segment-%08d.wal", w.segmentSeq))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.bytesWritten = 0
	w.segmentOpened = time.Now()
	return nil
}

// Append writes one record to the active segment, rotating first if the
// segment has grown past its size or age limit.
func (w *WAL) Append(recType int32, timeMs int64, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bytesWritten >= w.maxSegmentBytes || time.Since(w.segmentOpened) >= w.maxSegmentAge {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	buf := encodeWALRecord(WALRecord{Type: recType, TimeMs: timeMs, Payload: payload})
	n, err := w.file.Write(buf)
	w.bytesWritten += int64(n)
	return err
}

// Sync flushes the active segment to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Replay walks every segment file in dir in filename order (segment numbers
// are zero-padded so lexical order is chronological order) and invokes fn
// for each record, stopping at the first corrupt or truncated tail record
// it meets — a torn write from a crash mid-append, not a replay failure.
func Replay(dir string, fn func(WALRecord) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".wal" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, ent.Name()))
		if err != nil {
			return err
		}
		for {
			rec, err := decodeWALRecord(f)
			if err != nil {
				break
			}
			if err := fn(rec); err != nil {
				f.Close()
				return err
			}
		}
		f.Close()
	}
	return nil
}

// Snapshot is a gob-encoded checkpoint of an Engine's active accounts, used
// positions and orders, and counters. Nothing in this package restores an
// Engine from one; ReplayWAL always replays the log from its first segment.
type Snapshot struct {
	SlabID      [16]byte
	BookSeqnos  [MaxInstruments]uint64
	NextOrderID uint64
	NextHoldID  uint64
	Accounts    []snapshotAccount
	Positions   []snapshotPosition
	Orders      []snapshotOrder
}

type snapshotAccount struct {
	Index uint32
	Key   [16]byte
	Cash  []byte // big.Int.GobEncode
}

type snapshotPosition struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Qty           int64
	EntryPx       uint64
	LastFunding   []byte
}

type snapshotOrder struct {
	OrderID       uint64
	AccountIdx    uint32
	InstrumentIdx uint16
	Side          uint8
	State         uint8
	Price, Qty    uint64
	CreatedMs     uint64
}

// WriteSnapshot gob-encodes a Snapshot of e's live state to path. The
// collection walk runs on the engine's own goroutine via exec, like every
// other Engine method, so it never races a concurrent command.
func (e *Engine) WriteSnapshot(path string) error {
	var snap Snapshot
	e.exec(func() {
		snap.SlabID = e.SlabID
		for i := 0; i < e.numInstr; i++ {
			snap.BookSeqnos[i] = e.instruments[i].BookSeqno
		}
		snap.NextOrderID = e.nextOrderID
		snap.NextHoldID = e.nextHoldID

		for i := uint32(0); i < e.accounts.Cap(); i++ {
			a := e.accounts.Get(i)
			if !a.Active {
				continue
			}
			cashBytes, _ := a.Cash.GobEncode()
			snap.Accounts = append(snap.Accounts, snapshotAccount{Index: i, Key: a.Key, Cash: cashBytes})
		}
		for i := uint32(0); i < e.positions.Cap(); i++ {
			p := e.positions.Get(i)
			if !p.Used {
				continue
			}
			fBytes, _ := p.LastFunding.GobEncode()
			snap.Positions = append(snap.Positions, snapshotPosition{
				AccountIdx: p.AccountIdx, InstrumentIdx: p.InstrumentIdx,
				Qty: p.Qty, EntryPx: p.EntryPx, LastFunding: fBytes,
			})
		}
		for i := uint32(0); i < e.orders.Cap(); i++ {
			o := e.orders.Get(i)
			if !o.Used {
				continue
			}
			snap.Orders = append(snap.Orders, snapshotOrder{
				OrderID: o.OrderID, AccountIdx: o.AccountIdx, InstrumentIdx: o.InstrumentIdx,
				Side: uint8(o.Side), State: uint8(o.State), Price: o.Price, Qty: o.Qty, CreatedMs: o.CreatedMs,
			})
		}
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(snap)
}

// LoadSnapshot reads a Snapshot back from path. It only decodes the file;
// it does not apply the snapshot to an Engine.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
