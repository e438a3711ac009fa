package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/notify"
	"github.com/mvolkov/sol-limit-bot/internal/service"
	"github.com/mvolkov/sol-limit-bot/internal/store/memory"
)

type fixedPrices struct {
	price domain.TokenPrice
	err   error
}

func (p *fixedPrices) Quote(context.Context, string) (domain.TokenPrice, error) {
	return p.price, p.err
}

type captureNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *captureNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) captured() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newService(store *memory.Store, prices domain.PriceSource, notifier service.Notifier) *service.OrderService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewOrderService(store, store.Trades(), prices, notifier, logger)
}

func validParams() service.CreateOrderParams {
	return service.CreateOrderParams{
		OwnerID:      42,
		Mint:         "MintAAA111",
		Symbol:       "AAA",
		Kind:         domain.OrderKindBuy,
		TriggerPrice: 0.01,
		Amount:       100,
	}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prices := &fixedPrices{price: domain.TokenPrice{Mint: "MintAAA111", Symbol: "AAA", PriceSOL: 0.012}}
	svc := newService(store, prices, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 1.0, order.TotalSOL)
	require.NotNil(t, order.LastPrice)
	assert.Equal(t, 0.012, *order.LastPrice)
	assert.False(t, order.NextAttemptAt.After(time.Now().UTC()))

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestCreateOrderBackfillsSymbol(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prices := &fixedPrices{price: domain.TokenPrice{Mint: "MintAAA111", Symbol: "AAA", PriceSOL: 0.012}}
	svc := newService(store, prices, nil)

	p := validParams()
	p.Symbol = ""
	order, err := svc.CreateOrder(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "AAA", order.Symbol)
}

func TestCreateOrderSurvivesDeadPriceFeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, &fixedPrices{err: errors.New("feed down")}, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)
	assert.Nil(t, order.LastPrice)
}

func TestCreateOrderRejectsInvalidParams(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.New(), nil, nil)

	cases := map[string]func(*service.CreateOrderParams){
		"empty mint":       func(p *service.CreateOrderParams) { p.Mint = "" },
		"zero trigger":     func(p *service.CreateOrderParams) { p.TriggerPrice = 0 },
		"negative trigger": func(p *service.CreateOrderParams) { p.TriggerPrice = -1 },
		"zero amount":      func(p *service.CreateOrderParams) { p.Amount = 0 },
		"bad kind":         func(p *service.CreateOrderParams) { p.Kind = "HOLD" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			_, err := svc.CreateOrder(ctx, p)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := &captureNotifier{}
	svc := newService(store, nil, notifier)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrder(ctx, 42, order.ID))

	got, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, []string{notify.EventOrderCancelled}, notifier.captured())
}

func TestCancelOrderHidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, nil, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	err = svc.CancelOrder(ctx, 99, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The order is untouched.
	got, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestCancelOrderRefusesSettledOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, nil, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	claimed, err := store.TryClaim(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Settle(ctx, order.ID, domain.Filled(domain.Trade{
		ID:      "t1",
		OrderID: order.ID,
		OwnerID: 42,
	})))

	err = svc.CancelOrder(ctx, 42, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestGetOrderScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, nil, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, 42, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(ctx, 99, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListTrades(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store, nil, nil)

	order, err := svc.CreateOrder(ctx, validParams())
	require.NoError(t, err)

	claimed, err := store.TryClaim(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Settle(ctx, order.ID, domain.Filled(domain.Trade{
		ID:       "t1",
		OrderID:  order.ID,
		OwnerID:  42,
		Price:    0.009,
		Amount:   100,
		TotalSOL: 0.9,
	})))

	trades, err := svc.ListTrades(ctx, 42)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, order.ID, trades[0].OrderID)

	other, err := svc.ListTrades(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, other)
}
