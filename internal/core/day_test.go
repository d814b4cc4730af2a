package core

import (
	"testing"
	"time"
)

func TestGroupRowsByDay(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, time.March, d, 10, 0, 0, 0, time.UTC)
	}
	rows := []LedgerRow{
		{ID: 5, CreatedAt: day(3)},
		{ID: 4, CreatedAt: day(3)},
		{ID: 3, CreatedAt: day(2)},
		{ID: 2},               // no timestamp: stays with the preceding bucket
		{ID: 1, CreatedAt: day(1)},
	}

	groups := GroupRowsByDay(rows)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	wantKeys := []string{"2025-03-03", "2025-03-02", "2025-03-01"}
	wantIDs := [][]int64{{5, 4}, {3, 2}, {1}}
	total := 0
	for i, g := range groups {
		if g.Key != wantKeys[i] {
			t.Fatalf("group %d key = %q, want %q", i, g.Key, wantKeys[i])
		}
		if len(g.Rows) != len(wantIDs[i]) {
			t.Fatalf("group %q has %d rows, want %d", g.Key, len(g.Rows), len(wantIDs[i]))
		}
		for j, r := range g.Rows {
			if r.ID != wantIDs[i][j] {
				t.Fatalf("group %q row %d = id %d, want %d", g.Key, j, r.ID, wantIDs[i][j])
			}
		}
		total += len(g.Rows)
	}
	if total != len(rows) {
		t.Fatalf("grouping lost rows: %d != %d", total, len(rows))
	}

	if got := GroupRowsByDay(nil); len(got) != 0 {
		t.Fatalf("empty input produced %d groups", len(got))
	}
}

func TestDayLabel(t *testing.T) {
	if got := DayLabel("2025-03-03"); got != "03.03.2025" {
		t.Fatalf("DayLabel = %q", got)
	}
	if got := DayLabel("garbage"); got != "garbage" {
		t.Fatalf("DayLabel should pass through unparseable keys, got %q", got)
	}
}
