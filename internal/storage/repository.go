// Package storage is the standalone backend: the full cash service persisted
// in SQLite. It satisfies the same ports as the rest client, so the ledger
// cannot tell a local database from the central service.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

// Amounts are stored as TEXT and timestamps as RFC 3339 strings; SQLite has
// no decimal type and binary floats must never touch money.
const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

// Port conformance matches the rest client and the memory service.
var (
	_ cashapi.RowService      = (*SQLiteRepository)(nil)
	_ cashapi.PayoutService   = (*SQLiteRepository)(nil)
	_ cashapi.CreditRegistrar = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListRows implements cashapi.RowLister.
func (r *SQLiteRepository) ListRows(ctx context.Context) ([]core.LedgerRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_name, application, state_duty, dkp, insurance, plates, total, created_at
		FROM cash_rows
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list rows: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return out, nil
}

// CreateRow implements cashapi.RowCreator.
func (r *SQLiteRepository) CreateRow(ctx context.Context) (core.LedgerRow, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_rows (created_at) VALUES (?)`,
		now.Format(timeLayout))
	if err != nil {
		return core.LedgerRow{}, fmt.Errorf("create row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.LedgerRow{}, fmt.Errorf("create row id: %w", err)
	}

	slog.InfoContext(ctx, "Ledger row created", "id", id)
	return core.LedgerRow{
		ID:          id,
		Application: decimal.Zero,
		StateDuty:   decimal.Zero,
		DKP:         decimal.Zero,
		Insurance:   decimal.Zero,
		Plates:      decimal.Zero,
		Total:       decimal.Zero,
		CreatedAt:   now,
	}, nil
}

// UpdateRow implements cashapi.RowUpdater: only the fields present in the
// patch change, everything else keeps its stored value.
func (r *SQLiteRepository) UpdateRow(ctx context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error) {
	var (
		set  []string
		args []any
	)
	if patch.ClientName != nil {
		set = append(set, "client_name = ?")
		args = append(args, *patch.ClientName)
	}
	for _, field := range []struct {
		column string
		value  *decimal.Decimal
	}{
		{"application", patch.Application},
		{"state_duty", patch.StateDuty},
		{"dkp", patch.DKP},
		{"insurance", patch.Insurance},
		{"plates", patch.Plates},
		{"total", patch.Total},
	} {
		if field.value != nil {
			set = append(set, field.column+" = ?")
			args = append(args, field.value.String())
		}
	}

	if len(set) > 0 {
		args = append(args, id)
		_, err := r.db.ExecContext(ctx,
			"UPDATE cash_rows SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return core.LedgerRow{}, fmt.Errorf("update row: %w", err)
		}
	}
	return r.getRow(ctx, id)
}

// DeleteRow implements cashapi.RowDeleter.
func (r *SQLiteRepository) DeleteRow(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cash_rows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if affected == 0 {
		return notFound("delete row")
	}
	slog.InfoContext(ctx, "Ledger row deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) getRow(ctx context.Context, id int64) (core.LedgerRow, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, `
		SELECT id, client_name, application, state_duty, dkp, insurance, plates, total, created_at
		FROM cash_rows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerRow{}, notFound("get row")
	}
	if err != nil {
		return core.LedgerRow{}, fmt.Errorf("get row: %w", err)
	}
	return row, nil
}

// RegisterCredit implements cashapi.CreditRegistrar.
func (r *SQLiteRepository) RegisterCredit(ctx context.Context, credit core.PlateCredit) (core.PlateCredit, error) {
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO plate_credits (client_name, amount, created_at) VALUES (?, ?, ?)`,
		credit.ClientName, credit.Amount.String(), credit.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.PlateCredit{}, fmt.Errorf("register credit: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return core.PlateCredit{}, fmt.Errorf("register credit id: %w", err)
	}
	credit.OrderID = orderID

	slog.InfoContext(ctx, "Plate credit registered",
		"order_id", credit.OrderID, "amount", credit.Amount)
	return credit, nil
}

// ListUnpaidCredits implements cashapi.PayoutReader.
func (r *SQLiteRepository) ListUnpaidCredits(ctx context.Context) (core.PayoutPreview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, client_name, amount, created_at
		FROM plate_credits
		WHERE paid_at IS NULL
		ORDER BY created_at ASC, order_id ASC`)
	if err != nil {
		return core.PayoutPreview{}, fmt.Errorf("list unpaid credits: %w", err)
	}
	defer rows.Close()

	preview := core.PayoutPreview{Total: decimal.Zero}
	for rows.Next() {
		var (
			credit    core.PlateCredit
			amount    string
			createdAt string
		)
		if err := rows.Scan(&credit.OrderID, &credit.ClientName, &amount, &createdAt); err != nil {
			return core.PayoutPreview{}, fmt.Errorf("scan credit: %w", err)
		}
		if credit.Amount, err = decimal.NewFromString(amount); err != nil {
			return core.PayoutPreview{}, fmt.Errorf("parse credit amount %q: %w", amount, err)
		}
		if credit.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return core.PayoutPreview{}, fmt.Errorf("parse credit timestamp %q: %w", createdAt, err)
		}
		preview.Rows = append(preview.Rows, credit)
		preview.Total = preview.Total.Add(credit.Amount)
	}
	if err := rows.Err(); err != nil {
		return core.PayoutPreview{}, fmt.Errorf("list unpaid credits: %w", err)
	}
	return preview, nil
}

// PayAllCredits implements cashapi.PayoutPayer. The sum and the paid marks
// move in one transaction, so the reported result always matches what got
// settled.
func (r *SQLiteRepository) PayAllCredits(ctx context.Context) (core.PayoutResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.PayoutResult{}, fmt.Errorf("begin payout: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT amount FROM plate_credits WHERE paid_at IS NULL`)
	if err != nil {
		return core.PayoutResult{}, fmt.Errorf("collect unpaid credits: %w", err)
	}
	result := core.PayoutResult{Total: decimal.Zero}
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			rows.Close()
			return core.PayoutResult{}, fmt.Errorf("scan credit amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			rows.Close()
			return core.PayoutResult{}, fmt.Errorf("parse credit amount %q: %w", amount, err)
		}
		result.Count++
		result.Total = result.Total.Add(d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return core.PayoutResult{}, fmt.Errorf("collect unpaid credits: %w", err)
	}
	rows.Close()

	if result.Count > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE plate_credits SET paid_at = ? WHERE paid_at IS NULL`,
			time.Now().UTC().Format(timeLayout))
		if err != nil {
			return core.PayoutResult{}, fmt.Errorf("mark credits paid: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.PayoutResult{}, fmt.Errorf("commit payout: %w", err)
	}

	slog.InfoContext(ctx, "Plate credits paid out",
		"count", result.Count, "total", result.Total)
	return result, nil
}

// AuditEntry is one audit-log record, written by the audit worker from the
// event stream.
type AuditEntry struct {
	Kind        string
	RowID       int64
	PayoutCount int
	PayoutTotal decimal.Decimal
	OccurredAt  time.Time
}

// AppendAuditEntry persists an audit record.
func (r *SQLiteRepository) AppendAuditEntry(ctx context.Context, e AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (kind, row_id, payout_count, payout_total, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Kind, e.RowID, e.PayoutCount, e.PayoutTotal.String(),
		e.OccurredAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the newest audit records first, up to limit.
func (r *SQLiteRepository) ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, row_id, payout_count, payout_total, occurred_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			total      string
			occurredAt string
		)
		if err := rows.Scan(&e.Kind, &e.RowID, &e.PayoutCount, &total, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.PayoutTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse audit total %q: %w", total, err)
		}
		if e.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", occurredAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (core.LedgerRow, error) {
	var (
		row       core.LedgerRow
		amounts   [6]string
		createdAt string
	)
	err := s.Scan(&row.ID, &row.ClientName,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
		&createdAt)
	if err != nil {
		return core.LedgerRow{}, err
	}

	targets := []*decimal.Decimal{
		&row.Application, &row.StateDuty, &row.DKP, &row.Insurance, &row.Plates, &row.Total,
	}
	for i, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return core.LedgerRow{}, fmt.Errorf("parse amount %q: %w", raw, err)
		}
		*targets[i] = d
	}
	if row.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.LedgerRow{}, fmt.Errorf("parse timestamp %q: %w", createdAt, err)
	}
	return row, nil
}

func notFound(op string) error {
	return &cashapi.Error{
		Kind:   cashapi.KindServer,
		Op:     op,
		Status: http.StatusNotFound,
		Err:    cashapi.ErrNotFound,
	}
}
