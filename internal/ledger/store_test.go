package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/cashapi/memory"
	"cashdesk/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// flakyRows wraps the memory service and fails selected operations, counting
// the calls that reach the service.
type flakyRows struct {
	*memory.Service
	failList   bool
	failUpdate bool
	failDelete bool
	updates    int
}

func (f *flakyRows) ListRows(ctx context.Context) ([]core.LedgerRow, error) {
	if f.failList {
		return nil, &cashapi.Error{Kind: cashapi.KindServer, Op: "list rows", Status: 500}
	}
	return f.Service.ListRows(ctx)
}

func (f *flakyRows) UpdateRow(ctx context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error) {
	f.updates++
	if f.failUpdate {
		return core.LedgerRow{}, &cashapi.Error{Kind: cashapi.KindNetwork, Op: "update row", Err: errors.New("conn reset")}
	}
	return f.Service.UpdateRow(ctx, id, patch)
}

func (f *flakyRows) DeleteRow(ctx context.Context, id int64) error {
	if f.failDelete {
		return &cashapi.Error{Kind: cashapi.KindServer, Op: "delete row", Status: 500}
	}
	return f.Service.DeleteRow(ctx, id)
}

type eventRecorder struct {
	rows    []string
	payouts []core.PayoutResult
}

func (e *eventRecorder) PublishRowEvent(_ context.Context, kind string, _ int64) error {
	e.rows = append(e.rows, kind)
	return nil
}

func (e *eventRecorder) PublishPayoutEvent(_ context.Context, r core.PayoutResult) error {
	e.payouts = append(e.payouts, r)
	return nil
}

func seededService(totals ...string) *memory.Service {
	svc := memory.New()
	rows := make([]core.LedgerRow, 0, len(totals))
	for i, tot := range totals {
		rows = append(rows, core.LedgerRow{
			ID:        int64(len(totals) - i),
			Total:     dec(tot),
			CreatedAt: time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC),
		})
	}
	svc.SeedRows(rows)
	return svc
}

func TestLoadFailureIsNotAnEmptyLedger(t *testing.T) {
	ctx := context.Background()
	svc := &flakyRows{Service: seededService("100"), failList: true}
	store := NewStore(svc, nil)

	_, err := store.Load(ctx)
	if err == nil {
		t.Fatal("expected load error")
	}
	if kind, ok := cashapi.KindOf(err); !ok || kind != cashapi.KindServer {
		t.Fatalf("expected server kind, got %v", kind)
	}
	if store.Loaded() {
		t.Fatal("a failed load must not count as loaded")
	}

	svc.failList = false
	rows, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !store.Loaded() {
		t.Fatalf("load after recovery: %d rows", len(rows))
	}
}

func TestEditComponentRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := &flakyRows{Service: memory.New()}
	store := NewStore(svc, nil)

	row, err := store.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.EditComponent(ctx, row.ID, core.CategoryApplication, dec("100")); err != nil {
		t.Fatal(err)
	}
	got, err := store.EditComponent(ctx, row.ID, core.CategoryStateDuty, dec("50"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Total.Equal(dec("150")) {
		t.Fatalf("total = %s, want 150", got.Total)
	}

	got, err = store.EditComponent(ctx, row.ID, core.CategoryDKP, dec("-20"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Total.Equal(dec("130")) {
		t.Fatalf("total after dkp = %s, want 130", got.Total)
	}

	// Editing to the stored value must not reach the service.
	before := svc.updates
	if _, err := store.EditComponent(ctx, row.ID, core.CategoryDKP, dec("-20.00")); err != nil {
		t.Fatal(err)
	}
	if svc.updates != before {
		t.Fatalf("no-op edit hit the service (%d -> %d updates)", before, svc.updates)
	}
}

func TestUpdateFailureLeavesMirrorUntouched(t *testing.T) {
	ctx := context.Background()
	svc := &flakyRows{Service: memory.New()}
	store := NewStore(svc, nil)

	row, err := store.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.EditComponent(ctx, row.ID, core.CategoryInsurance, dec("70")); err != nil {
		t.Fatal(err)
	}

	svc.failUpdate = true
	if _, err := store.EditComponent(ctx, row.ID, core.CategoryInsurance, dec("9999")); err == nil {
		t.Fatal("expected update error")
	}
	got, ok := store.Row(row.ID)
	if !ok {
		t.Fatal("row vanished")
	}
	if !got.Insurance.Equal(dec("70")) || !got.Total.Equal(dec("70")) {
		t.Fatalf("mirror changed after failed update: %+v", got)
	}
}

func TestDeleteFailureKeepsRow(t *testing.T) {
	ctx := context.Background()
	svc := &flakyRows{Service: memory.New()}
	store := NewStore(svc, nil)

	row, err := store.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}

	svc.failDelete = true
	if err := store.Delete(ctx, row.ID); err == nil {
		t.Fatal("expected delete error")
	}
	if _, ok := store.Row(row.ID); !ok {
		t.Fatal("row removed despite failed delete")
	}

	svc.failDelete = false
	if err := store.Delete(ctx, row.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Row(row.ID); ok {
		t.Fatal("row still present after delete")
	}
}

func TestAggregateTotal(t *testing.T) {
	ctx := context.Background()
	store := NewStore(seededService("100", "-30", "200"), nil)
	if _, err := store.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := store.AggregateTotal(); !got.Equal(dec("270")) {
		t.Fatalf("aggregate = %s, want 270", got)
	}

	empty := NewStore(memory.New(), nil)
	if _, err := empty.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := empty.AggregateTotal(); !got.IsZero() {
		t.Fatalf("aggregate of empty ledger = %s", got)
	}
}

func TestCreatePrependsAndPublishes(t *testing.T) {
	ctx := context.Background()
	events := &eventRecorder{}
	store := NewStore(memory.New(), events)
	if _, err := store.Load(ctx); err != nil {
		t.Fatal(err)
	}

	first, _ := store.Create(ctx)
	second, _ := store.Create(ctx)
	rows := store.Rows()
	if len(rows) != 2 || rows[0].ID != second.ID || rows[1].ID != first.ID {
		t.Fatalf("new rows must sit at the head: %+v", rows)
	}
	if len(events.rows) != 2 || events.rows[0] != "row_created" {
		t.Fatalf("events = %v", events.rows)
	}
}

func TestGroupByDayThroughStore(t *testing.T) {
	ctx := context.Background()
	svc := memory.New()
	day := func(d int) time.Time {
		return time.Date(2025, time.March, d, 8, 0, 0, 0, time.UTC)
	}
	svc.SeedRows([]core.LedgerRow{
		{ID: 3, CreatedAt: day(2)},
		{ID: 2, CreatedAt: day(2)},
		{ID: 1, CreatedAt: day(1)},
	})
	store := NewStore(svc, nil)
	if _, err := store.Load(ctx); err != nil {
		t.Fatal(err)
	}

	groups := store.GroupByDay()
	if len(groups) != 2 {
		t.Fatalf("got %d groups", len(groups))
	}
	if groups[0].Key != "2025-03-02" || len(groups[0].Rows) != 2 {
		t.Fatalf("first group = %+v", groups[0])
	}
}
