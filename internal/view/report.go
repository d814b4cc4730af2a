// Package view renders the ledger and payout panel as plain text, one report
// per request. Rendering never mutates state; callers pass in what the store
// currently mirrors.
package view

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cashdesk/internal/core"
)

// Renderer holds the report presentation knobs.
type Renderer struct {
	// Currency marker appended to every amount. Empty means core.DefaultCurrency.
	Currency string
}

const nameColumn = 24

func (r Renderer) money(v decimal.Decimal) string {
	cur := r.Currency
	if cur == "" {
		cur = core.DefaultCurrency
	}
	return core.FormatGrouped(v) + " " + cur
}

// Report renders the day-bucketed ledger with a grand-total footer. Days
// arrive newest first and are printed in that order; the label format matches
// the ledger table's day separators.
func (r Renderer) Report(groups []core.DayGroup, aggregate decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString("CASH LEDGER\n")

	empty := true
	for _, g := range groups {
		if len(g.Rows) == 0 {
			continue
		}
		empty = false
		sb.WriteString("\n== ")
		sb.WriteString(core.DayLabel(g.Key))
		sb.WriteString(" ==\n")
		for _, row := range g.Rows {
			r.writeRow(&sb, row)
		}
	}
	if empty {
		sb.WriteString("\nno rows recorded\n")
	}

	sb.WriteString("\nTOTAL ")
	sb.WriteString(r.money(aggregate))
	sb.WriteString("\n")
	return sb.String()
}

func (r Renderer) writeRow(sb *strings.Builder, row core.LedgerRow) {
	name := clip(row.ClientName)
	sb.WriteString(fmt.Sprintf("  #%-5d %s", row.ID, name))
	if pad := nameColumn - len([]rune(name)); pad > 0 {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	sb.WriteString(fmt.Sprintf("%16s", r.money(row.Total)))

	if parts := componentBreakdown(row); parts != "" {
		sb.WriteString("  (")
		sb.WriteString(parts)
		sb.WriteString(")")
	}
	sb.WriteString("\n")
}

// clip normalizes a client label to the fixed name column. Names are free
// text and often Cyrillic, so truncation counts runes, not bytes.
func clip(name string) string {
	if name == "" {
		return "-"
	}
	runes := []rune(name)
	if len(runes) > nameColumn {
		return string(runes[:nameColumn])
	}
	return name
}

// componentBreakdown lists the non-zero categories so a printed report shows
// where a total came from without repeating five zero columns per row.
func componentBreakdown(row core.LedgerRow) string {
	var parts []string
	for _, c := range core.Categories() {
		v := row.Component(c)
		if v.IsZero() {
			continue
		}
		parts = append(parts, string(c)+" "+core.FormatForEdit(v))
	}
	return strings.Join(parts, ", ")
}

// PayoutPanel renders the unpaid-credit preview the way the payout screen
// shows it: one line per credit, oldest data as delivered by the service, and
// the settlement sum underneath.
func (r Renderer) PayoutPanel(preview core.PayoutPreview) string {
	var sb strings.Builder
	sb.WriteString("PLATE PAYOUTS\n")
	if preview.Count() == 0 {
		sb.WriteString("\nnothing to pay\n")
		return sb.String()
	}
	for _, credit := range preview.Rows {
		name := clip(credit.ClientName)
		sb.WriteString(fmt.Sprintf("  order %-6d %s", credit.OrderID, name))
		if pad := nameColumn - len([]rune(name)); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(fmt.Sprintf("%16s\n", r.money(credit.Amount)))
	}
	sb.WriteString("\nTO PAY ")
	sb.WriteString(r.money(preview.Total))
	sb.WriteString("\n")
	return sb.String()
}
