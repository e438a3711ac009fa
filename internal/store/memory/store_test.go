package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/store/memory"
)

func newOrder(id string) domain.LimitOrder {
	return domain.LimitOrder{
		ID:           id,
		OwnerID:      42,
		Mint:         "MintAAA111",
		Symbol:       "AAA",
		Kind:         domain.OrderKindBuy,
		TriggerPrice: 0.01,
		Amount:       100,
		TotalSOL:     1,
		Status:       domain.OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

func claim(t *testing.T, s *memory.Store, id string) {
	t.Helper()
	ok, err := s.TryClaim(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTryClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))

	ok, err := s.TryClaim(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claim must lose.
	ok, err = s.TryClaim(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListActiveSkipsBackoffAndTerminalOrders(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	ready := newOrder("ready")
	require.NoError(t, s.Create(ctx, ready))

	waiting := newOrder("waiting")
	waiting.NextAttemptAt = time.Now().Add(time.Hour)
	require.NoError(t, s.Create(ctx, waiting))

	done := newOrder("done")
	require.NoError(t, s.Create(ctx, done))
	claim(t, s, "done")
	require.NoError(t, s.Settle(ctx, "done", domain.Failed("no route")))

	active, err := s.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ready", active[0].ID)
}

func TestSettleRetryClearsSignature(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))
	claim(t, s, "o1")
	require.NoError(t, s.SetSignature(ctx, "o1", "sig-1"))

	next := time.Now().Add(time.Minute)
	require.NoError(t, s.Settle(ctx, "o1", domain.Retry(next)))

	got, err := s.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.Signature, "a PENDING order must carry no signature")
	assert.Equal(t, next, got.NextAttemptAt)
}

func TestSettleRequeueKeepsRetryCount(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))
	claim(t, s, "o1")

	require.NoError(t, s.Settle(ctx, "o1", domain.Requeue()))

	got, err := s.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestSettleFilledRecordsTradeOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))
	claim(t, s, "o1")

	trade := domain.Trade{ID: "t1", OrderID: "o1", OwnerID: 42, Signature: "sig-1"}
	require.NoError(t, s.Settle(ctx, "o1", domain.Filled(trade)))

	got, err := s.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, got.Status)
	require.NotNil(t, got.Signature)
	assert.Equal(t, "sig-1", *got.Signature)

	// Settling again is refused; the trade stays unique.
	err = s.Settle(ctx, "o1", domain.Filled(trade))
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
	assert.Equal(t, 1, s.TradeCount())
}

func TestSettleRequiresExecuting(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))

	err := s.Settle(ctx, "o1", domain.Failed("boom"))
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
}

func TestCancelRules(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	// PENDING cancels.
	require.NoError(t, s.Create(ctx, newOrder("pending")))
	require.NoError(t, s.Cancel(ctx, "pending"))

	// EXECUTING without a signature cancels: nothing reached the chain yet.
	require.NoError(t, s.Create(ctx, newOrder("claimed")))
	claim(t, s, "claimed")
	require.NoError(t, s.Cancel(ctx, "claimed"))

	// EXECUTING with a signature does not.
	require.NoError(t, s.Create(ctx, newOrder("submitted")))
	claim(t, s, "submitted")
	require.NoError(t, s.SetSignature(ctx, "submitted", "sig-1"))
	assert.ErrorIs(t, s.Cancel(ctx, "submitted"), domain.ErrNotCancellable)

	// FILLED does not.
	require.NoError(t, s.Create(ctx, newOrder("filled")))
	claim(t, s, "filled")
	require.NoError(t, s.Settle(ctx, "filled", domain.Filled(domain.Trade{ID: "t1", OrderID: "filled"})))
	assert.ErrorIs(t, s.Cancel(ctx, "filled"), domain.ErrNotCancellable)

	assert.ErrorIs(t, s.Cancel(ctx, "missing"), domain.ErrNotFound)
}

func TestListStaleExecuting(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	now := time.Now().UTC()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Create(ctx, newOrder("stale")))
	claim(t, s, "stale")

	now = now.Add(10 * time.Minute)

	require.NoError(t, s.Create(ctx, newOrder("fresh")))
	claim(t, s, "fresh")

	stale, err := s.ListStaleExecuting(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].ID)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	older := newOrder("older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, older))

	newer := newOrder("newer")
	require.NoError(t, s.Create(ctx, newer))

	foreign := newOrder("foreign")
	foreign.OwnerID = 99
	require.NoError(t, s.Create(ctx, foreign))

	orders, err := s.ListByOwner(ctx, 42)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "newer", orders[0].ID)
	assert.Equal(t, "older", orders[1].ID)
}

func TestTradeView(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, newOrder("o1")))
	claim(t, s, "o1")
	require.NoError(t, s.Settle(ctx, "o1", domain.Filled(domain.Trade{
		ID: "t1", OrderID: "o1", OwnerID: 42, Signature: "sig-1",
	})))

	trades := s.Trades()

	got, err := trades.GetByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = trades.GetByOrderID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mine, err := trades.ListByOwner(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
