package slab

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"percolator/internal/common"
)

func TestWALAppendReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(dir, 1<<20, time.Hour)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	records := []struct {
		typ     int32
		payload []byte
	}{
		{RecordReserve, []byte("reserve-1")},
		{RecordCommit, []byte("commit-1")},
		{RecordCancel, []byte("cancel-1")},
	}
	for _, r := range records {
		if err := w.Append(r.typ, 123, r.payload); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []WALRecord
	if err := Replay(dir, func(rec WALRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i, want := range records {
		if got[i].Type != want.typ || string(got[i].Payload) != string(want.payload) {
			t.Errorf("record %d: expected type=%d payload=%q, got type=%d payload=%q",
				i, want.typ, want.payload, got[i].Type, got[i].Payload)
		}
	}
}

func TestWALSegmentRotation(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(dir, 1, time.Hour) // rotate on every append
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Append(RecordReserve, int64(i), []byte("x")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	w.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) < 2 {
		t.Fatalf("expected multiple segments from rotation, got %d", len(matches))
	}

	count := 0
	if err := Replay(dir, func(WALRecord) error { count++; return nil }); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records across segments, got %d", count)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	instr := e.AddInstrument("BTC-PERP", 1, 1, 1, 50_000)
	acc := e.AddAccount(uuid.New())
	fundAccount(e, acc, 500)
	e.PlaceOrder(acc, instr, common.Buy, common.TIFGTC, common.MakerRegular, 100, 5, 0)

	path := filepath.Join(t.TempDir(), "snap.gob")
	if err := e.WriteSnapshot(path); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(snap.Accounts) != 1 {
		t.Fatalf("expected 1 account in snapshot, got %d", len(snap.Accounts))
	}
}
