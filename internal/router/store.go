package router

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// OutboxState is the delivery state of one pending Router event, which is
// retried until acknowledged, grounded on infra/wal/exit's ExitState (NEW/SENT/ACKED/FAILED).
type OutboxState uint8

const (
	OutboxNew OutboxState = iota
	OutboxSent
	OutboxAcked
)

func (s OutboxState) String() string {
	switch s {
	case OutboxNew:
		return "NEW"
	case OutboxSent:
		return "SENT"
	case OutboxAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// OutboxRecord is one durable outbox entry: the JSON-encoded Event payload
// plus its delivery bookkeeping.
type OutboxRecord struct {
	Seq         uint64
	State       OutboxState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary header encoding: [state:1][retries:4][lastAttempt:8], payload
// follows as the remainder of the value, mirroring infra/wal/exit's
// fixed-header-then-payload record shape.
func encodeOutboxValue(state OutboxState, retries uint32, lastAttempt int64, payload []byte) []byte {
	buf := make([]byte, 1+4+8+len(payload))
	buf[0] = byte(state)
	binary.BigEndian.PutUint32(buf[1:5], retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(lastAttempt))
	copy(buf[13:], payload)
	return buf
}

func decodeOutboxValue(seq uint64, b []byte) (OutboxRecord, error) {
	if len(b) < 13 {
		return OutboxRecord{}, errors.New("router store: truncated outbox record")
	}
	return OutboxRecord{
		Seq:         seq,
		State:       OutboxState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[13:]...),
	}, nil
}

// Store is the Router's durable event outbox: EventLog.Append writes each
// Deposit/Withdraw/Pledge/mint_cap/safe_debit/begin_route/end_route event
// here after the operation has happened, grounded on infra/wal/exit/wal.go's
// Pebble-backed exit WAL — the same NEW/SENT/ACKED shape, generalized from
// "order exit" to "Router event". The orchestrator does not record route
// progress here, and nothing resumes an interrupted route from the Store.
type Store struct {
	db *pebble.DB
}

// OpenStore opens (creating if needed) a Pebble-backed outbox at dir.
func OpenStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{DisableWAL: false})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying Pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutNew inserts a fresh NEW outbox entry for seq with the given payload.
func (s *Store) PutNew(seq uint64, payload []byte) error {
	return s.db.Set(outboxKey(seq), encodeOutboxValue(OutboxNew, 0, 0, payload), pebble.Sync)
}

// MarkSent flips seq's state to SENT, bumping its retry counter and attempt
// timestamp; publish is retried from SENT if it never reaches ACKED.
func (s *Store) MarkSent(seq uint64, nowUnixNano int64) error {
	return s.updateState(seq, OutboxSent, nowUnixNano)
}

// MarkAcked flips seq's state to ACKED once delivery is confirmed.
func (s *Store) MarkAcked(seq uint64, nowUnixNano int64) error {
	return s.updateState(seq, OutboxAcked, nowUnixNano)
}

func (s *Store) updateState(seq uint64, state OutboxState, nowUnixNano int64) error {
	rec, err := s.Get(seq)
	if err != nil {
		return err
	}
	rec.Retries++
	return s.db.Set(outboxKey(seq), encodeOutboxValue(state, rec.Retries, nowUnixNano, rec.Payload), pebble.Sync)
}

// Get returns the current record for seq.
func (s *Store) Get(seq uint64) (OutboxRecord, error) {
	val, closer, err := s.db.Get(outboxKey(seq))
	if err != nil {
		return OutboxRecord{}, err
	}
	defer closer.Close()
	return decodeOutboxValue(seq, val)
}

// Delete removes an ACKED record once it no longer needs to be retried.
func (s *Store) Delete(seq uint64) error {
	return s.db.Delete(outboxKey(seq), pebble.Sync)
}

// ScanPending walks every outbox record not yet ACKED, in sequence order,
// invoking fn for each — the same scan shape infra/wal/exit's ScanByState
// gives its Broadcaster, generalized to "anything not finished" instead of
// one fixed state so a single pass can both (re)send NEW records and retry
// stalled SENT ones.
func (s *Store) ScanPending(fn func(rec OutboxRecord) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("route/"),
		UpperBound: []byte("route/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseOutboxKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeOutboxValue(seq, iter.Value())
		if err != nil {
			return err
		}
		if rec.State == OutboxAcked {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func outboxKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("route/%020d", seq))
}

func parseOutboxKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("route/"))), "%d", &seq)
	return seq, err
}
