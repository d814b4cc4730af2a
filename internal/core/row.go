package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category names one of the five fixed amount columns of a ledger row.
type Category string

const (
	CategoryApplication Category = "application"
	CategoryStateDuty   Category = "state_duty"
	CategoryDKP         Category = "dkp"
	CategoryInsurance   Category = "insurance"
	CategoryPlates      Category = "plates"
)

// Categories lists the five columns in table order.
func Categories() []Category {
	return []Category{
		CategoryApplication,
		CategoryStateDuty,
		CategoryDKP,
		CategoryInsurance,
		CategoryPlates,
	}
}

// LedgerRow is one cash ledger entry: a client label, five category amounts
// and a total. The total tracks the component sum after every component edit
// but may be overridden directly; the override holds until the next component
// edit recomputes it. Any amount may be negative (refunds and corrections).
type LedgerRow struct {
	ID          int64           `json:"id"`
	ClientName  string          `json:"client_name"`
	Application decimal.Decimal `json:"application"`
	StateDuty   decimal.Decimal `json:"state_duty"`
	DKP         decimal.Decimal `json:"dkp"`
	Insurance   decimal.Decimal `json:"insurance"`
	Plates      decimal.Decimal `json:"plates"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Component returns the amount stored under the given category.
func (r LedgerRow) Component(c Category) decimal.Decimal {
	switch c {
	case CategoryApplication:
		return r.Application
	case CategoryStateDuty:
		return r.StateDuty
	case CategoryDKP:
		return r.DKP
	case CategoryInsurance:
		return r.Insurance
	case CategoryPlates:
		return r.Plates
	}
	return decimal.Zero
}

func (r *LedgerRow) setComponent(c Category, v decimal.Decimal) {
	switch c {
	case CategoryApplication:
		r.Application = v
	case CategoryStateDuty:
		r.StateDuty = v
	case CategoryDKP:
		r.DKP = v
	case CategoryInsurance:
		r.Insurance = v
	case CategoryPlates:
		r.Plates = v
	}
}

// RowPatch is the minimal field set sent to the cash service on an edit.
// Only set fields are marshalled; an all-nil patch means "nothing changed".
type RowPatch struct {
	ClientName  *string          `json:"client_name,omitempty"`
	Application *decimal.Decimal `json:"application,omitempty"`
	StateDuty   *decimal.Decimal `json:"state_duty,omitempty"`
	DKP         *decimal.Decimal `json:"dkp,omitempty"`
	Insurance   *decimal.Decimal `json:"insurance,omitempty"`
	Plates      *decimal.Decimal `json:"plates,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p RowPatch) IsEmpty() bool {
	return p.ClientName == nil &&
		p.Application == nil &&
		p.StateDuty == nil &&
		p.DKP == nil &&
		p.Insurance == nil &&
		p.Plates == nil &&
		p.Total == nil
}

func (p *RowPatch) setComponent(c Category, v decimal.Decimal) {
	switch c {
	case CategoryApplication:
		p.Application = &v
	case CategoryStateDuty:
		p.StateDuty = &v
	case CategoryDKP:
		p.DKP = &v
	case CategoryInsurance:
		p.Insurance = &v
	case CategoryPlates:
		p.Plates = &v
	}
}

// RecomputeTotal returns the sum of the five components. Side-effect free.
func RecomputeTotal(r LedgerRow) decimal.Decimal {
	return r.Application.
		Add(r.StateDuty).
		Add(r.DKP).
		Add(r.Insurance).
		Add(r.Plates)
}

// ApplyComponentEdit sets one category and recomputes the total, returning
// the updated row together with the minimal patch ({category, total}) to send
// to the service. When the new value equals the stored one the row is returned
// unchanged with an empty patch, so a stale recompute never clobbers a
// concurrent server-side change.
func ApplyComponentEdit(r LedgerRow, c Category, v decimal.Decimal) (LedgerRow, RowPatch) {
	if r.Component(c).Equal(v) {
		return r, RowPatch{}
	}
	r.setComponent(c, v)
	total := RecomputeTotal(r)
	r.Total = total

	var p RowPatch
	p.setComponent(c, v)
	p.Total = &total
	return r, p
}

// ApplyTotalOverride sets the total directly, leaving the components alone.
// The patch carries only the total; the override is not reconciled against the
// component sum until the next component edit.
func ApplyTotalOverride(r LedgerRow, v decimal.Decimal) (LedgerRow, RowPatch) {
	if r.Total.Equal(v) {
		return r, RowPatch{}
	}
	r.Total = v
	return r, RowPatch{Total: &v}
}

// ApplyNameEdit trims and sets the client label.
func ApplyNameEdit(r LedgerRow, name string) (LedgerRow, RowPatch) {
	name = strings.TrimSpace(name)
	if r.ClientName == name {
		return r, RowPatch{}
	}
	r.ClientName = name
	return r, RowPatch{ClientName: &name}
}
