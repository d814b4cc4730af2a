// Package cashapi defines the boundary to the cash service: the port
// interfaces the ledger talks through and the error taxonomy every
// implementation reports with. The service behind the ports is the owner of
// record; each call's response is canonical.
package cashapi

import (
	"context"

	"cashdesk/internal/core"
)

// Ports for cash service implementations.
type (
	RowLister interface {
		// ListRows returns every ledger row, newest first.
		ListRows(ctx context.Context) ([]core.LedgerRow, error)
	}

	RowCreator interface {
		// CreateRow stores a fresh row (zero amounts, empty name) and returns
		// it with its assigned id and creation time.
		CreateRow(ctx context.Context) (core.LedgerRow, error)
	}

	RowUpdater interface {
		// UpdateRow applies a partial field set and returns the canonical row.
		UpdateRow(ctx context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error)
	}

	RowDeleter interface {
		DeleteRow(ctx context.Context, id int64) error
	}

	// PayoutReader reports the credits an immediate payout would settle.
	PayoutReader interface {
		ListUnpaidCredits(ctx context.Context) (core.PayoutPreview, error)
	}

	// PayoutPayer settles every unpaid credit in one shot. Not idempotent:
	// callers must guard against double submission.
	PayoutPayer interface {
		PayAllCredits(ctx context.Context) (core.PayoutResult, error)
	}

	// CreditRegistrar records a plate credit when an order with plates
	// completes.
	CreditRegistrar interface {
		RegisterCredit(ctx context.Context, credit core.PlateCredit) (core.PlateCredit, error)
	}
)

// RowService groups the full row surface; the rest client, the SQLite
// repository and the memory service all satisfy it.
type RowService interface {
	RowLister
	RowCreator
	RowUpdater
	RowDeleter
}

// PayoutService groups the payout surface.
type PayoutService interface {
	PayoutReader
	PayoutPayer
}
