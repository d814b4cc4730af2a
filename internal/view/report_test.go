package view

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReportGroupsAndFooter(t *testing.T) {
	rows := []core.LedgerRow{
		{ID: 3, ClientName: "Иванов", Application: dec("100"), StateDuty: dec("50"), DKP: dec("-20"), Total: dec("130"),
			CreatedAt: time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)},
		{ID: 2, Total: dec("2500"),
			CreatedAt: time.Date(2025, time.March, 2, 18, 0, 0, 0, time.UTC)},
	}
	groups := core.GroupRowsByDay(rows)

	out := Renderer{}.Report(groups, dec("2630"))

	for _, want := range []string{
		"CASH LEDGER",
		"== 03.03.2025 ==",
		"== 02.03.2025 ==",
		"#3",
		"Иванов",
		"130 ₽",
		"application 100.00, state_duty 50.00, dkp -20.00",
		"2 500 ₽",
		"TOTAL 2 630 ₽",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "insurance") {
		t.Fatalf("zero components must be omitted:\n%s", out)
	}

	// Newer day prints first.
	if strings.Index(out, "03.03.2025") > strings.Index(out, "02.03.2025") {
		t.Fatalf("day order wrong:\n%s", out)
	}
}

func TestReportEmptyLedger(t *testing.T) {
	out := Renderer{}.Report(nil, decimal.Zero)
	if !strings.Contains(out, "no rows recorded") {
		t.Fatalf("report = %q", out)
	}
	if !strings.Contains(out, "TOTAL 0 ₽") {
		t.Fatalf("empty ledger still gets a footer:\n%s", out)
	}
}

func TestReportCurrencyOverride(t *testing.T) {
	out := Renderer{Currency: "KZT"}.Report(nil, dec("10"))
	if !strings.Contains(out, "TOTAL 10 KZT") {
		t.Fatalf("report = %q", out)
	}
	if strings.Contains(out, "₽") {
		t.Fatalf("default marker must not leak through an override:\n%s", out)
	}
}

func TestPayoutPanel(t *testing.T) {
	preview := core.PayoutPreview{
		Rows: []core.PlateCredit{
			{OrderID: 11, ClientName: "X", Amount: dec("1500")},
			{OrderID: 12, Amount: dec("3000")},
		},
		Total: dec("4500"),
	}
	out := Renderer{}.PayoutPanel(preview)

	for _, want := range []string{"PLATE PAYOUTS", "order 11", "1 500 ₽", "order 12", "TO PAY 4 500 ₽"} {
		if !strings.Contains(out, want) {
			t.Fatalf("panel missing %q:\n%s", want, out)
		}
	}

	empty := Renderer{}.PayoutPanel(core.PayoutPreview{})
	if !strings.Contains(empty, "nothing to pay") {
		t.Fatalf("empty panel = %q", empty)
	}
}
