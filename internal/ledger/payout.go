package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

// PayoutState is the aggregator's position in the preview/commit cycle.
type PayoutState string

const (
	// PayoutIdle: panel collapsed, nothing to settle.
	PayoutIdle PayoutState = "idle"
	// PayoutPreviewing: unpaid credits loaded, commit available.
	PayoutPreviewing PayoutState = "previewing"
	// PayoutCommitting: commit request in flight, further commits refused.
	PayoutCommitting PayoutState = "committing"
)

var (
	// ErrNothingToPay: commit attempted with no previewed credits.
	ErrNothingToPay = errors.New("nothing to pay")
	// ErrCommitInFlight: a commit is already running; the pay control stays
	// disabled until it settles.
	ErrCommitInFlight = errors.New("payout commit already in flight")
)

// Payout aggregates unpaid plate credits into one settlement. The commit is
// not idempotent at the service, so the aggregator admits at most one
// in-flight commit and rejects commits against an empty preview. The sum
// shown after a commit is always the service's PayoutResult, never a
// client-side recount.
type Payout struct {
	svc    cashapi.PayoutService
	events EventPublisher

	mu      sync.Mutex
	state   PayoutState
	preview core.PayoutPreview
}

func NewPayout(svc cashapi.PayoutService, events EventPublisher) *Payout {
	return &Payout{svc: svc, events: events, state: PayoutIdle}
}

// State returns the current lifecycle position.
func (p *Payout) State() PayoutState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Preview returns the last loaded credit set.
func (p *Payout) Preview() core.PayoutPreview {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preview
}

// CanCommit reports whether a commit would be accepted right now.
func (p *Payout) CanCommit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == PayoutPreviewing && p.preview.Count() > 0
}

// Load refreshes the unpaid-credit preview. With credits present the panel
// moves to previewing; with none it collapses back to idle. Loading is
// refused while a commit is in flight.
func (p *Payout) Load(ctx context.Context) (core.PayoutPreview, error) {
	p.mu.Lock()
	if p.state == PayoutCommitting {
		p.mu.Unlock()
		return core.PayoutPreview{}, ErrCommitInFlight
	}
	p.mu.Unlock()

	preview, err := p.svc.ListUnpaidCredits(ctx)
	if err != nil {
		return core.PayoutPreview{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PayoutCommitting {
		// A commit slipped in while we were loading; drop the stale preview.
		return core.PayoutPreview{}, ErrCommitInFlight
	}
	p.preview = preview
	if preview.Count() > 0 {
		p.state = PayoutPreviewing
	} else {
		p.state = PayoutIdle
	}
	return preview, nil
}

// Commit settles every previewed credit in one service call. Exactly one
// confirmation triggers exactly one request: a second commit while the first
// is in flight gets ErrCommitInFlight, and a commit against an empty preview
// gets ErrNothingToPay. Success clears the preview and returns to idle;
// failure returns to previewing with the credit set intact for retry.
func (p *Payout) Commit(ctx context.Context) (core.PayoutResult, error) {
	p.mu.Lock()
	switch {
	case p.state == PayoutCommitting:
		p.mu.Unlock()
		return core.PayoutResult{}, ErrCommitInFlight
	case p.state != PayoutPreviewing || p.preview.Count() == 0:
		p.mu.Unlock()
		return core.PayoutResult{}, ErrNothingToPay
	}
	p.state = PayoutCommitting
	p.mu.Unlock()

	result, err := p.svc.PayAllCredits(ctx)

	p.mu.Lock()
	if err != nil {
		p.state = PayoutPreviewing // preview unchanged, retry permitted
		p.mu.Unlock()
		return core.PayoutResult{}, err
	}
	p.state = PayoutIdle
	p.preview = core.PayoutPreview{}
	p.mu.Unlock()

	if p.events != nil {
		if pubErr := p.events.PublishPayoutEvent(ctx, result); pubErr != nil {
			slog.ErrorContext(ctx, "Failed to publish payout event",
				"count", result.Count, "total", result.Total, "error", pubErr)
		}
	}
	return result, nil
}
