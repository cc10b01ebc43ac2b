package router

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Event types, exactly the closing list spec.md §4.7 names as the Router's
// emitted event stream.
const (
	EventDeposit                = "deposit"
	EventWithdraw               = "withdraw"
	EventPledge                 = "pledge"
	EventUnpledge               = "unpledge"
	EventMintCap                = "mint_cap"
	EventBurnCap                = "burn_cap"
	EventSafeDebit              = "safe_debit"
	EventUpdatePortfolioOnTrade = "update_portfolio_on_trade"
	EventBeginRoute             = "begin_route"
	EventEndRoute               = "end_route"
)

// Event is one Router event, JSON-encoded before being written to the
// outbox and published to Kafka.
type Event struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Ts      uint64 `json:"ts"`
	RouteID uint64 `json:"route_id,omitempty"`
	User    string `json:"user,omitempty"`
	SlabID  string `json:"slab_id,omitempty"`
	Mint    string `json:"mint,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

// EventLog publishes Router events to Kafka, fed from a durable Store so
// publish can be retried independently of the operation that produced the
// event. Grounded on jobs/broadcaster/broadcaster.go's SyncProducer +
// ticking replay loop, generalized from one fixed Event{V,Type,ID,Seq}
// shape to the richer Router Event above.
type EventLog struct {
	mu       sync.Mutex
	store    *Store
	producer sarama.SyncProducer
	topic    string
	nextSeq  uint64
}

// NewEventLog dials brokers and returns an EventLog that writes to topic,
// backed by store for at-least-once delivery across restarts.
func NewEventLog(store *Store, brokers []string, topic string) (*EventLog, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	l := &EventLog{store: store, producer: producer, topic: topic}
	// continue numbering after any record still pending from an earlier run,
	// so Append never overwrites an undelivered event.
	_ = store.ScanPending(func(rec OutboxRecord) error {
		if rec.Seq >= l.nextSeq {
			l.nextSeq = rec.Seq + 1
		}
		return nil
	})
	return l, nil
}

// Append durably records ev in the outbox; publish happens asynchronously
// on the next replay tick (or immediately, via Flush, in tests).
func (l *EventLog) Append(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	seq := l.nextSeq
	l.nextSeq++
	l.mu.Unlock()
	return l.store.PutNew(seq, payload)
}

// Start launches the background replay loop that drains the outbox to
// Kafka every interval, mirroring Broadcaster.Start's ticker shape.
func (l *EventLog) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Flush()
			}
		}
	}()
}

// Flush publishes every NEW or still-unacknowledged SENT outbox record
// once, in sequence order, marking each ACKED on a successful send. A send
// failure leaves the record pending for the next Flush.
func (l *EventLog) Flush() {
	_ = l.store.ScanPending(func(rec OutboxRecord) error {
		now := time.Now().UnixNano()
		if rec.State == OutboxNew {
			_ = l.store.MarkSent(rec.Seq, now)
		}

		msg := &sarama.ProducerMessage{
			Topic: l.topic,
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := l.producer.SendMessage(msg); err != nil {
			return nil // retry on the next tick
		}
		return l.store.MarkAcked(rec.Seq, now)
	})
}

// Close closes the underlying Kafka producer; the Store outlives it and is
// closed separately by whoever opened it.
func (l *EventLog) Close() error {
	return l.producer.Close()
}
