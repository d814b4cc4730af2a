// Package ledger keeps the in-memory mirror of the cash ledger and drives
// every round trip through the cash service ports. The service is the owner
// of record: each successful call's response replaces local state, and a
// failed call leaves local state exactly as it was.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

// ErrUnknownRow is returned for edits against a row id the mirror does not
// hold; the caller should reload before retrying.
var ErrUnknownRow = errors.New("unknown row")

// EventPublisher receives audit events after successful mutations. A nil
// publisher disables the audit stream; publish failures are logged and never
// fail the mutation itself.
type EventPublisher interface {
	PublishRowEvent(ctx context.Context, kind string, rowID int64) error
	PublishPayoutEvent(ctx context.Context, result core.PayoutResult) error
}

// Store mirrors the remote row collection for one session, newest first.
type Store struct {
	svc    cashapi.RowService
	events EventPublisher

	mu     sync.Mutex
	rows   []core.LedgerRow
	loaded bool

	flight singleflight.Group
}

func NewStore(svc cashapi.RowService, events EventPublisher) *Store {
	return &Store{svc: svc, events: events}
}

// Load fetches all rows from the service and replaces the mirror. Concurrent
// loads collapse into a single upstream call. A failed load keeps the previous
// mirror and returns the classified error: an empty ledger and a failed load
// are different states, and the caller must be able to tell them apart.
func (s *Store) Load(ctx context.Context) ([]core.LedgerRow, error) {
	_, err, _ := s.flight.Do("load", func() (any, error) {
		rows, err := s.svc.ListRows(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.rows = rows
		s.loaded = true
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Rows(), nil
}

// Loaded reports whether at least one load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Rows returns a copy of the mirrored collection.
func (s *Store) Rows() []core.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerRow(nil), s.rows...)
}

// Row returns the mirrored row with the given id.
func (s *Store) Row(id int64) (core.LedgerRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			return r, true
		}
	}
	return core.LedgerRow{}, false
}

// Create asks the service for a fresh zeroed row and inserts it at the head
// of the mirror. On failure nothing is inserted.
func (s *Store) Create(ctx context.Context) (core.LedgerRow, error) {
	row, err := s.svc.CreateRow(ctx)
	if err != nil {
		return core.LedgerRow{}, err
	}
	s.mu.Lock()
	s.rows = append([]core.LedgerRow{row}, s.rows...)
	s.mu.Unlock()

	s.publishRow(ctx, "row_created", row.ID)
	return row, nil
}

// Update sends a partial update and replaces the mirrored row with the
// service's canonical version. An empty patch is answered from the mirror
// without a round trip. On failure the mirrored row is untouched, so the
// visible state keeps reflecting what is actually persisted.
func (s *Store) Update(ctx context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error) {
	if patch.IsEmpty() {
		if row, ok := s.Row(id); ok {
			return row, nil
		}
		return core.LedgerRow{}, ErrUnknownRow
	}

	row, err := s.svc.UpdateRow(ctx, id, patch)
	if err != nil {
		return core.LedgerRow{}, err
	}
	s.replace(row)

	s.publishRow(ctx, "row_updated", row.ID)
	return row, nil
}

// EditComponent parses nothing; it takes a normalized amount, builds the
// minimal {category, total} patch against the mirrored row and round-trips
// it. Editing a category to its current value is a no-op.
func (s *Store) EditComponent(ctx context.Context, id int64, c core.Category, v decimal.Decimal) (core.LedgerRow, error) {
	row, ok := s.Row(id)
	if !ok {
		return core.LedgerRow{}, ErrUnknownRow
	}
	_, patch := core.ApplyComponentEdit(row, c, v)
	return s.Update(ctx, id, patch)
}

// OverrideTotal sets the row total directly, leaving components alone.
func (s *Store) OverrideTotal(ctx context.Context, id int64, v decimal.Decimal) (core.LedgerRow, error) {
	row, ok := s.Row(id)
	if !ok {
		return core.LedgerRow{}, ErrUnknownRow
	}
	_, patch := core.ApplyTotalOverride(row, v)
	return s.Update(ctx, id, patch)
}

// EditName trims and sets the client label.
func (s *Store) EditName(ctx context.Context, id int64, name string) (core.LedgerRow, error) {
	row, ok := s.Row(id)
	if !ok {
		return core.LedgerRow{}, ErrUnknownRow
	}
	_, patch := core.ApplyNameEdit(row, name)
	return s.Update(ctx, id, patch)
}

// Delete removes the row remotely first; the mirror only drops it after the
// service confirms.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.svc.DeleteRow(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows = append(s.rows[:i:i], s.rows[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publishRow(ctx, "row_deleted", id)
	return nil
}

// AggregateTotal sums Total across all mirrored rows. Derived on demand,
// never persisted.
func (s *Store) AggregateTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, r := range s.rows {
		sum = sum.Add(r.Total)
	}
	return sum
}

// GroupByDay buckets the mirrored rows by the calendar date of CreatedAt,
// preserving order within each day.
func (s *Store) GroupByDay() []core.DayGroup {
	return core.GroupRowsByDay(s.Rows())
}

func (s *Store) replace(row core.LedgerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == row.ID {
			s.rows[i] = row
			return
		}
	}
	// Row unknown to this mirror (e.g. created in another session); keep the
	// canonical copy at the head.
	s.rows = append([]core.LedgerRow{row}, s.rows...)
}

func (s *Store) publishRow(ctx context.Context, kind string, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRowEvent(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "row_id", id, "error", err)
	}
}
