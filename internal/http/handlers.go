package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
	"cashdesk/internal/ledger"
	"cashdesk/internal/log"
)

// detailResponse is the error body shape shared with the central cash
// service, so callers see one error format regardless of backend.
type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeServiceError translates ledger and service-boundary errors into the
// detail shape with an appropriate status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cashapi.ErrNotFound), errors.Is(err, ledger.ErrUnknownRow):
		writeDetail(w, http.StatusNotFound, "row not found")
		return
	case errors.Is(err, ledger.ErrNothingToPay):
		writeDetail(w, http.StatusConflict, "nothing to pay")
		return
	case errors.Is(err, ledger.ErrCommitInFlight):
		writeDetail(w, http.StatusConflict, "payout commit already in flight")
		return
	}

	var se *cashapi.Error
	if errors.As(err, &se) {
		detail := se.Detail
		if detail == "" {
			detail = se.Error()
		}
		switch se.Kind {
		case cashapi.KindNetwork, cashapi.KindMalformed:
			writeDetail(w, http.StatusBadGateway, detail)
		default:
			status := se.Status
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			writeDetail(w, status, detail)
		}
		return
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Unclassified handler error", "error", err)
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

// amountField is a JSON field that accepts either a bare number or a raw
// edit-field string ("1 200,50"). Strings go through the same normalization
// as the edit fields; numbers are rounded to two decimal places.
type amountField struct {
	set   bool
	value decimal.Decimal
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	a.set = true
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.value = core.ParseAmount(s)
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	a.value = d.Round(2)
	return nil
}

// rowPatchRequest is the partial-edit body for PATCH /cash/rows/{id}.
type rowPatchRequest struct {
	ClientName  *string     `json:"client_name"`
	Application amountField `json:"application"`
	StateDuty   amountField `json:"state_duty"`
	DKP         amountField `json:"dkp"`
	Insurance   amountField `json:"insurance"`
	Plates      amountField `json:"plates"`
	Total       amountField `json:"total"`
}

func (req rowPatchRequest) component(c core.Category) amountField {
	switch c {
	case core.CategoryApplication:
		return req.Application
	case core.CategoryStateDuty:
		return req.StateDuty
	case core.CategoryDKP:
		return req.DKP
	case core.CategoryInsurance:
		return req.Insurance
	case core.CategoryPlates:
		return req.Plates
	}
	return amountField{}
}

func mergePatch(dst *core.RowPatch, src core.RowPatch) {
	if src.ClientName != nil {
		dst.ClientName = src.ClientName
	}
	if src.Application != nil {
		dst.Application = src.Application
	}
	if src.StateDuty != nil {
		dst.StateDuty = src.StateDuty
	}
	if src.DKP != nil {
		dst.DKP = src.DKP
	}
	if src.Insurance != nil {
		dst.Insurance = src.Insurance
	}
	if src.Plates != nil {
		dst.Plates = src.Plates
	}
	if src.Total != nil {
		dst.Total = src.Total
	}
}

// ensureLoaded performs the first load lazily so read and edit handlers can
// rely on the mirror.
func (s *Server) ensureLoaded(r *http.Request) error {
	if s.store.Loaded() {
		return nil
	}
	_, err := s.store.Load(r.Context())
	return err
}

func rowID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	if body, ok := s.rowsCache.Get(rowsCacheKey); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(body)
		return
	}

	rows, err := s.store.Load(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.LedgerRow{}
	}

	body, err := json.Marshal(rows)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.rowsCache.Set(rowsCacheKey, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Create(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateReadCaches()
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handlePatchRow(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid row id")
		return
	}

	var req rowPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ensureLoaded(r); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, found := s.store.Row(id)
	if !found {
		writeDetail(w, http.StatusNotFound, "row not found")
		return
	}

	// Component edits recompute the total; a client-sent total alongside a
	// component is ignored. A total-only body is a manual override.
	working := row
	var patch core.RowPatch
	touchedComponent := false
	for _, c := range core.Categories() {
		f := req.component(c)
		if !f.set {
			continue
		}
		touchedComponent = true
		var p core.RowPatch
		working, p = core.ApplyComponentEdit(working, c, f.value)
		mergePatch(&patch, p)
	}
	if !touchedComponent && req.Total.set {
		var p core.RowPatch
		working, p = core.ApplyTotalOverride(working, req.Total.value)
		mergePatch(&patch, p)
	}
	if req.ClientName != nil {
		var p core.RowPatch
		working, p = core.ApplyNameEdit(working, *req.ClientName)
		mergePatch(&patch, p)
	}

	updated, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateReadCaches()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid row id")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateReadCaches()
	w.WriteHeader(http.StatusNoContent)
}

// payoutPreviewResponse adds the credit count to the preview shape.
type payoutPreviewResponse struct {
	Rows  []core.PlateCredit `json:"rows"`
	Total decimal.Decimal    `json:"total"`
	Count int                `json:"count"`
}

func (s *Server) handlePayoutPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.payout.Load(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rows := preview.Rows
	if rows == nil {
		rows = []core.PlateCredit{}
	}
	writeJSON(w, http.StatusOK, payoutPreviewResponse{
		Rows:  rows,
		Total: preview.Total,
		Count: preview.Count(),
	})
}

func (s *Server) handlePayoutCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.payout.Commit(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// creditRequest is the body for POST /cash/plate-credits.
type creditRequest struct {
	OrderID    int64       `json:"order_id"`
	ClientName string      `json:"client_name"`
	Amount     amountField `json:"amount"`
}

func (s *Server) handleRegisterCredit(w http.ResponseWriter, r *http.Request) {
	if s.credits == nil {
		writeDetail(w, http.StatusServiceUnavailable, "credit registration not available on this backend")
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.set || req.Amount.value.IsZero() {
		writeDetail(w, http.StatusUnprocessableEntity, "amount is required")
		return
	}

	credit, err := s.credits.RegisterCredit(r.Context(), core.PlateCredit{
		OrderID:    req.OrderID,
		ClientName: req.ClientName,
		Amount:     req.Amount.value,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, credit)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if text, ok := s.reportCache.Get(reportCacheKey); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
		return
	}

	if _, err := s.store.Load(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	text := s.render.Report(s.store.GroupByDay(), s.store.AggregateTotal())
	s.reportCache.Set(reportCacheKey, text)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}
