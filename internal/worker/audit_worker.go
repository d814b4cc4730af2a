// Package worker runs the audit consumer: it drains the ledger event stream
// and writes each event into the audit log.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cashdesk/internal/amqp"
	"cashdesk/internal/storage"
)

// AuditStore is the slice of the repository the worker needs.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, e storage.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

// EventStream delivers ledger events until the context is cancelled.
type EventStream interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(*amqp.LedgerEventMessage) error) error
}

type AuditWorker struct {
	store AuditStore
}

func NewAuditWorker(store AuditStore) *AuditWorker {
	return &AuditWorker{store: store}
}

// HandleEvent records one event in the audit log. A returned error sends the
// delivery back onto the queue, so the log misses nothing across restarts.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	if msg.Kind == "" {
		return fmt.Errorf("event without kind")
	}

	entry := storage.AuditEntry{
		Kind:        msg.Kind,
		RowID:       msg.RowID,
		PayoutCount: msg.PayoutCount,
		PayoutTotal: msg.PayoutTotal,
		OccurredAt:  msg.Timestamp,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}

	if err := w.store.AppendAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	slog.InfoContext(ctx, "Audit entry recorded",
		"kind", entry.Kind,
		"row_id", entry.RowID,
		"payout_count", entry.PayoutCount)
	return nil
}

// Run consumes the stream and periodically logs a summary of recent audit
// activity. It returns when either goroutine fails or the context ends.
func (w *AuditWorker) Run(ctx context.Context, stream EventStream, summaryInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return stream.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
			return w.HandleEvent(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w.logSummary(ctx)
			}
		}
	})

	return g.Wait()
}

func (w *AuditWorker) logSummary(ctx context.Context) {
	entries, err := w.store.ListAuditEntries(ctx, 100)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read audit log for summary", "error", err)
		return
	}
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Kind]++
	}
	slog.InfoContext(ctx, "Audit activity summary",
		"recent_entries", len(entries),
		"by_kind", counts)
}
