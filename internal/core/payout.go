package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlateCredit is one unpaid amount owed to the plate operator, created when an
// order with plates completes. The ledger never owns these; it only previews
// and settles them.
type PlateCredit struct {
	OrderID    int64           `json:"order_id"`
	ClientName string          `json:"client_name"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PayoutPreview is the current set of unpaid credits and their sum, as
// reported by the cash service.
type PayoutPreview struct {
	Rows  []PlateCredit   `json:"rows"`
	Total decimal.Decimal `json:"total"`
}

// Count returns the number of credits a commit would settle.
func (p PayoutPreview) Count() int {
	return len(p.Rows)
}

// PayoutResult reports a committed payout: how many credits were collapsed and
// the sum paid out. The service's figures are authoritative; the client never
// substitutes its own preview sums after a commit.
type PayoutResult struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}
