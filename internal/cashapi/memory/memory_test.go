package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := New()
	svc.SetClock(func() time.Time {
		return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	})

	row, err := svc.CreateRow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if row.ID == 0 || !row.Total.IsZero() || row.CreatedAt.IsZero() {
		t.Fatalf("unexpected created row: %+v", row)
	}

	v := decimal.RequireFromString("250")
	total := decimal.RequireFromString("250")
	updated, err := svc.UpdateRow(ctx, row.ID, core.RowPatch{Application: &v, Total: &total})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Application.Equal(v) || !updated.Total.Equal(total) {
		t.Fatalf("update not applied: %+v", updated)
	}

	rows, err := svc.ListRows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].Total.Equal(total) {
		t.Fatalf("list after update: %+v", rows)
	}

	if err := svc.DeleteRow(ctx, row.ID); err != nil {
		t.Fatal(err)
	}
	rows, _ = svc.ListRows(ctx)
	if len(rows) != 0 {
		t.Fatalf("row not deleted: %+v", rows)
	}
}

func TestUnknownRowReportsServerError(t *testing.T) {
	ctx := context.Background()
	svc := New()

	_, err := svc.UpdateRow(ctx, 42, core.RowPatch{})
	if !errors.Is(err, cashapi.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if kind, ok := cashapi.KindOf(err); !ok || kind != cashapi.KindServer {
		t.Fatalf("expected server kind, got %v (%v)", kind, ok)
	}

	if err := svc.DeleteRow(ctx, 42); !errors.Is(err, cashapi.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPayoutLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := New()

	amounts := []string{"1500", "2000", "1000"}
	for i, a := range amounts {
		_, err := svc.RegisterCredit(ctx, core.PlateCredit{
			OrderID:    int64(i + 1),
			ClientName: "client",
			Amount:     decimal.RequireFromString(a),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	preview, err := svc.ListUnpaidCredits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if preview.Count() != 3 || !preview.Total.Equal(decimal.RequireFromString("4500")) {
		t.Fatalf("preview = count %d total %s", preview.Count(), preview.Total)
	}

	result, err := svc.PayAllCredits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 3 || !result.Total.Equal(decimal.RequireFromString("4500")) {
		t.Fatalf("result = %+v", result)
	}

	// Settled credits disappear from later previews, and a second pay
	// settles nothing.
	preview, _ = svc.ListUnpaidCredits(ctx)
	if preview.Count() != 0 || !preview.Total.IsZero() {
		t.Fatalf("preview after pay = count %d total %s", preview.Count(), preview.Total)
	}
	result, _ = svc.PayAllCredits(ctx)
	if result.Count != 0 || !result.Total.IsZero() {
		t.Fatalf("second pay = %+v", result)
	}
}
