package router

import (
	"testing"
)

func TestStorePutNewScanPendingMarkAcked(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	if err := s.PutNew(1, []byte(`{"type":"deposit"}`)); err != nil {
		t.Fatalf("put new: %v", err)
	}
	if err := s.PutNew(2, []byte(`{"type":"withdraw"}`)); err != nil {
		t.Fatalf("put new: %v", err)
	}

	var seen []uint64
	if err := s.ScanPending(func(rec OutboxRecord) error {
		seen = append(seen, rec.Seq)
		if rec.State != OutboxNew {
			t.Fatalf("expected seq %d to still be NEW, got %s", rec.Seq, rec.State)
		}
		return nil
	}); err != nil {
		t.Fatalf("scan pending: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(seen))
	}

	if err := s.MarkSent(1, 1000); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := s.MarkAcked(1, 2000); err != nil {
		t.Fatalf("mark acked: %v", err)
	}

	rec, err := s.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.State != OutboxAcked {
		t.Fatalf("expected ACKED, got %s", rec.State)
	}
	if rec.Retries != 2 {
		t.Fatalf("expected 2 retries (sent+acked), got %d", rec.Retries)
	}

	seen = nil
	if err := s.ScanPending(func(rec OutboxRecord) error {
		seen = append(seen, rec.Seq)
		return nil
	}); err != nil {
		t.Fatalf("scan pending: %v", err)
	}
	if len(seen) != 1 || seen[0] != 2 {
		t.Fatalf("expected only seq 2 still pending, got %v", seen)
	}
}

func TestStoreDeleteRemovesRecord(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	if err := s.PutNew(5, []byte("x")); err != nil {
		t.Fatalf("put new: %v", err)
	}
	if err := s.Delete(5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(5); err == nil {
		t.Fatalf("expected error reading deleted record")
	}
}
