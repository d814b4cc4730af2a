// Package memory is an in-process cash service used for development and
// tests. It mimics the central service's observable behaviour, including its
// error shapes, so the ledger store and payout aggregator exercise the same
// paths in every mode.
package memory

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

type creditRecord struct {
	credit core.PlateCredit
	paid   bool
}

type Service struct {
	mu       sync.Mutex
	rows     []core.LedgerRow // newest first
	credits  []creditRecord
	nextID   int64
	nextCred int64

	now func() time.Time
}

func New() *Service {
	return &Service{nextID: 1, nextCred: 1, now: time.Now}
}

// SeedRows loads rows wholesale, newest first. Used by dev fixtures and tests.
func (s *Service) SeedRows(rows []core.LedgerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.LedgerRow(nil), rows...)
	for _, r := range rows {
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
}

// SetClock overrides the creation-time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ListRows implements cashapi.RowLister.
func (s *Service) ListRows(_ context.Context) ([]core.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerRow(nil), s.rows...), nil
}

// CreateRow implements cashapi.RowCreator.
func (s *Service) CreateRow(_ context.Context) (core.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := core.LedgerRow{
		ID:          s.nextID,
		Application: decimal.Zero,
		StateDuty:   decimal.Zero,
		DKP:         decimal.Zero,
		Insurance:   decimal.Zero,
		Plates:      decimal.Zero,
		Total:       decimal.Zero,
		CreatedAt:   s.now(),
	}
	s.nextID++
	s.rows = append([]core.LedgerRow{row}, s.rows...)
	return row, nil
}

// UpdateRow implements cashapi.RowUpdater. The returned row is the canonical
// post-update state.
func (s *Service) UpdateRow(_ context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID != id {
			continue
		}
		r := s.rows[i]
		if patch.ClientName != nil {
			r.ClientName = *patch.ClientName
		}
		if patch.Application != nil {
			r.Application = *patch.Application
		}
		if patch.StateDuty != nil {
			r.StateDuty = *patch.StateDuty
		}
		if patch.DKP != nil {
			r.DKP = *patch.DKP
		}
		if patch.Insurance != nil {
			r.Insurance = *patch.Insurance
		}
		if patch.Plates != nil {
			r.Plates = *patch.Plates
		}
		if patch.Total != nil {
			r.Total = *patch.Total
		}
		s.rows[i] = r
		return r, nil
	}
	return core.LedgerRow{}, notFound("update row")
}

// DeleteRow implements cashapi.RowDeleter.
func (s *Service) DeleteRow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows = append(s.rows[:i:i], s.rows[i+1:]...)
			return nil
		}
	}
	return notFound("delete row")
}

// RegisterCredit implements cashapi.CreditRegistrar.
func (s *Service) RegisterCredit(_ context.Context, credit core.PlateCredit) (core.PlateCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credit.OrderID == 0 {
		credit.OrderID = s.nextCred
	}
	s.nextCred++
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = s.now()
	}
	s.credits = append(s.credits, creditRecord{credit: credit})
	return credit, nil
}

// ListUnpaidCredits implements cashapi.PayoutReader.
func (s *Service) ListUnpaidCredits(_ context.Context) (core.PayoutPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preview := core.PayoutPreview{Total: decimal.Zero}
	for _, rec := range s.credits {
		if rec.paid {
			continue
		}
		preview.Rows = append(preview.Rows, rec.credit)
		preview.Total = preview.Total.Add(rec.credit.Amount)
	}
	return preview, nil
}

// PayAllCredits implements cashapi.PayoutPayer: marks every unpaid credit as
// settled and reports what was paid. Settled credits never reappear in later
// previews.
func (s *Service) PayAllCredits(_ context.Context) (core.PayoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := core.PayoutResult{Total: decimal.Zero}
	for i := range s.credits {
		if s.credits[i].paid {
			continue
		}
		s.credits[i].paid = true
		result.Count++
		result.Total = result.Total.Add(s.credits[i].credit.Amount)
	}
	return result, nil
}

func notFound(op string) error {
	return &cashapi.Error{
		Kind:   cashapi.KindServer,
		Op:     op,
		Status: http.StatusNotFound,
		Err:    cashapi.ErrNotFound,
	}
}
