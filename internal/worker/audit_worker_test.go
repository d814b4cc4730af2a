package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/amqp"
	"cashdesk/internal/storage"
)

type fakeAuditStore struct {
	entries []storage.AuditEntry
	failing bool
}

func (f *fakeAuditStore) AppendAuditEntry(_ context.Context, e storage.AuditEntry) error {
	if f.failing {
		return errors.New("disk full")
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditStore) ListAuditEntries(_ context.Context, limit int) ([]storage.AuditEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

func TestHandleEventRecordsEntry(t *testing.T) {
	store := &fakeAuditStore{}
	w := NewAuditWorker(store)

	msg := amqp.NewRowEventMessage(amqp.EventRowUpdated, 7)
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if len(store.entries) != 1 {
		t.Fatalf("got %d entries", len(store.entries))
	}
	e := store.entries[0]
	if e.Kind != amqp.EventRowUpdated || e.RowID != 7 {
		t.Fatalf("entry = %+v", e)
	}
	if e.OccurredAt.IsZero() {
		t.Fatal("occurred_at must be set")
	}
}

func TestHandleEventPayout(t *testing.T) {
	store := &fakeAuditStore{}
	w := NewAuditWorker(store)

	total := decimal.RequireFromString("4500")
	msg := &amqp.LedgerEventMessage{
		Kind:        amqp.EventPayoutCommitted,
		PayoutCount: 3,
		PayoutTotal: total,
		Timestamp:   time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC),
	}
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	e := store.entries[0]
	if e.PayoutCount != 3 || !e.PayoutTotal.Equal(total) {
		t.Fatalf("entry = %+v", e)
	}
	if !e.OccurredAt.Equal(msg.Timestamp) {
		t.Fatalf("occurred_at = %v, want message timestamp", e.OccurredAt)
	}
}

func TestHandleEventRejectsBadInput(t *testing.T) {
	w := NewAuditWorker(&fakeAuditStore{})
	if err := w.HandleEvent(context.Background(), &amqp.LedgerEventMessage{}); err == nil {
		t.Fatal("event without kind must be rejected")
	}

	failing := NewAuditWorker(&fakeAuditStore{failing: true})
	msg := amqp.NewRowEventMessage(amqp.EventRowCreated, 1)
	if err := failing.HandleEvent(context.Background(), msg); err == nil {
		t.Fatal("store failure must propagate so the delivery is requeued")
	}
}

type fakeStream struct {
	messages []*amqp.LedgerEventMessage
}

func (f *fakeStream) ConsumeLedgerEvents(ctx context.Context, handler func(*amqp.LedgerEventMessage) error) error {
	for _, msg := range f.messages {
		if err := handler(msg); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunDrainsStream(t *testing.T) {
	store := &fakeAuditStore{}
	w := NewAuditWorker(store)
	stream := &fakeStream{messages: []*amqp.LedgerEventMessage{
		amqp.NewRowEventMessage(amqp.EventRowCreated, 1),
		amqp.NewRowEventMessage(amqp.EventRowDeleted, 1),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := w.Run(ctx, stream, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if len(store.entries) != 2 {
		t.Fatalf("got %d entries", len(store.entries))
	}
}
