package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/engine"
	"github.com/mvolkov/sol-limit-bot/internal/notify"
	"github.com/mvolkov/sol-limit-bot/internal/store/memory"
)

// reconcilerFixture seeds one claimed order and gives the test a movable
// clock shared by the store and the reconciler.
type reconcilerFixture struct {
	store    *memory.Store
	rec      *engine.Reconciler
	chain    *stubChain
	notifier *captureNotifier
	now      time.Time
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		store:    memory.New(),
		chain:    newStubChain(),
		notifier: &captureNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)

	f.rec = engine.NewReconciler(f.store, f.chain, f.notifier, testConfig(), testLogger())
	f.rec.SetClock(clock)

	return f
}

// claim seeds a PENDING order and claims it, optionally recording a
// signature, then advances the clock past the staleness threshold.
func (f *reconcilerFixture) claim(t *testing.T, id, signature string) {
	t.Helper()
	ctx := context.Background()

	seedOrder(f.store, id, domain.OrderKindBuy, 0.01, 100)
	claimed, err := f.store.TryClaim(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)
	if signature != "" {
		require.NoError(t, f.store.SetSignature(ctx, id, signature))
	}

	f.now = f.now.Add(2 * time.Minute) // past StaleAfter, within ReconcileGrace
}

func TestReconcilerRequeuesUnsubmittedClaim(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.claim(t, "o1", "")

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount, "requeue must not consume a retry")
	assert.Nil(t, got.Signature)
}

func TestReconcilerRecoversConfirmedFill(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.claim(t, "o1", "sig-lost")
	f.chain.statuses["sig-lost"] = domain.TxConfirmed

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, got.Status)
	assert.Equal(t, 1, f.store.TradeCount())
	assert.Equal(t, []string{notify.EventOrderFilled}, f.notifier.captured())

	trade, err := f.store.GetByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "sig-lost", trade.Signature)

	// A second pass must not settle or record anything again.
	f.rec.ReconcileOnce(ctx)
	assert.Equal(t, 1, f.store.TradeCount())
	assert.Equal(t, []string{notify.EventOrderFilled}, f.notifier.captured())
}

func TestReconcilerWaitsWithinGraceWindow(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.claim(t, "o1", "sig-inflight")
	// Chain has no record yet; the claim is 2 minutes old, well inside the
	// 10 minute grace window.

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuting, got.Status)
	require.NotNil(t, got.Signature)
}

func TestReconcilerRetriesExpiredTransaction(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.claim(t, "o1", "sig-expired")
	f.now = f.now.Add(15 * time.Minute) // well past ReconcileGrace

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.Signature)
	assert.Equal(t, 0, f.store.TradeCount())
}

func TestReconcilerRetriesFailedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.claim(t, "o1", "sig-dead")
	f.chain.statuses["sig-dead"] = domain.TxFailed

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, 0, f.store.TradeCount())
}

func TestReconcilerIgnoresFreshClaims(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)

	seedOrder(f.store, "o1", domain.OrderKindBuy, 0.01, 100)
	claimed, err := f.store.TryClaim(ctx, "o1")
	require.NoError(t, err)
	require.True(t, claimed)
	// Clock not advanced: the claim is fresh and likely still being worked.

	f.rec.ReconcileOnce(ctx)

	got, err := f.store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuting, got.Status)
}
