package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/cashapi/memory"
	"cashdesk/internal/core"
)

func creditedService(t *testing.T, amounts ...string) *memory.Service {
	t.Helper()
	svc := memory.New()
	for i, a := range amounts {
		_, err := svc.RegisterCredit(context.Background(), core.PlateCredit{
			ClientName: "client",
			Amount:     dec(a),
			CreatedAt:  time.Date(2025, time.March, 1+i, 10, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return svc
}

func TestPayoutLifecycle(t *testing.T) {
	ctx := context.Background()
	payout := NewPayout(creditedService(t, "1500", "2000", "1000"), nil)

	if payout.State() != PayoutIdle {
		t.Fatalf("fresh state = %s", payout.State())
	}

	preview, err := payout.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if preview.Count() != 3 || !preview.Total.Equal(dec("4500")) {
		t.Fatalf("preview = %+v", preview)
	}
	if payout.State() != PayoutPreviewing || !payout.CanCommit() {
		t.Fatalf("state after load = %s", payout.State())
	}

	result, err := payout.Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 3 || !result.Total.Equal(dec("4500")) {
		t.Fatalf("result = %+v", result)
	}
	if payout.State() != PayoutIdle || payout.Preview().Count() != 0 {
		t.Fatalf("commit must clear the preview, state = %s", payout.State())
	}

	// Settled credits stay settled.
	preview, err = payout.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if preview.Count() != 0 || !preview.Total.IsZero() {
		t.Fatalf("reload after commit = %+v", preview)
	}
	if payout.State() != PayoutIdle {
		t.Fatalf("empty reload must collapse to idle, got %s", payout.State())
	}
}

func TestCommitWithoutPreviewRefused(t *testing.T) {
	ctx := context.Background()
	payout := NewPayout(creditedService(t, "1500"), nil)

	// Never loaded.
	if _, err := payout.Commit(ctx); !errors.Is(err, ErrNothingToPay) {
		t.Fatalf("expected ErrNothingToPay, got %v", err)
	}

	// Loaded, but the preview is empty.
	empty := NewPayout(memory.New(), nil)
	if _, err := empty.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := empty.Commit(ctx); !errors.Is(err, ErrNothingToPay) {
		t.Fatalf("expected ErrNothingToPay, got %v", err)
	}
}

// gatedPayout blocks PayAllCredits until released, so tests can observe the
// committing window.
type gatedPayout struct {
	inner   cashapi.PayoutService
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedPayout(inner cashapi.PayoutService) *gatedPayout {
	return &gatedPayout{
		inner:   inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedPayout) ListUnpaidCredits(ctx context.Context) (core.PayoutPreview, error) {
	return g.inner.ListUnpaidCredits(ctx)
}

func (g *gatedPayout) PayAllCredits(ctx context.Context) (core.PayoutResult, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.inner.PayAllCredits(ctx)
}

func TestDoubleCommitRefused(t *testing.T) {
	ctx := context.Background()
	gate := newGatedPayout(creditedService(t, "700"))
	payout := NewPayout(gate, nil)

	if _, err := payout.Load(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := payout.Commit(ctx)
		done <- err
	}()
	<-gate.entered

	if payout.State() != PayoutCommitting {
		t.Fatalf("state during commit = %s", payout.State())
	}
	if _, err := payout.Commit(ctx); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("second commit: expected ErrCommitInFlight, got %v", err)
	}
	if _, err := payout.Load(ctx); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("load during commit: expected ErrCommitInFlight, got %v", err)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if payout.State() != PayoutIdle {
		t.Fatalf("state after settled commit = %s", payout.State())
	}
}

// failingPayout serves a fixed preview and fails every commit.
type failingPayout struct {
	preview core.PayoutPreview
}

func (f *failingPayout) ListUnpaidCredits(context.Context) (core.PayoutPreview, error) {
	return f.preview, nil
}

func (f *failingPayout) PayAllCredits(context.Context) (core.PayoutResult, error) {
	return core.PayoutResult{}, &cashapi.Error{Kind: cashapi.KindNetwork, Op: "pay credits", Err: errors.New("conn reset")}
}

func TestFailedCommitKeepsPreviewForRetry(t *testing.T) {
	ctx := context.Background()
	svc := &failingPayout{preview: core.PayoutPreview{
		Rows:  []core.PlateCredit{{OrderID: 5, Amount: dec("1200")}},
		Total: dec("1200"),
	}}
	payout := NewPayout(svc, nil)

	if _, err := payout.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := payout.Commit(ctx); err == nil {
		t.Fatal("expected commit failure")
	}
	if payout.State() != PayoutPreviewing {
		t.Fatalf("state after failed commit = %s", payout.State())
	}
	got := payout.Preview()
	if got.Count() != 1 || !got.Total.Equal(dec("1200")) {
		t.Fatalf("preview after failed commit = %+v", got)
	}
	if !payout.CanCommit() {
		t.Fatal("retry must stay available after a failed commit")
	}
}

func TestCommitPublishesPayoutEvent(t *testing.T) {
	ctx := context.Background()
	events := &eventRecorder{}
	payout := NewPayout(creditedService(t, "1500", "3000"), events)

	if _, err := payout.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := payout.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(events.payouts) != 1 || events.payouts[0].Count != 2 || !events.payouts[0].Total.Equal(dec("4500")) {
		t.Fatalf("published payouts = %+v", events.payouts)
	}
}
