// Package service implements the order intake operations sitting between
// transports (HTTP, bots) and the engine-owned stores.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/notify"
)

// Notifier delivers order lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CreateOrderParams carries the owner's order request.
type CreateOrderParams struct {
	OwnerID      int64
	Mint         string
	Symbol       string
	Kind         domain.OrderKind
	TriggerPrice float64
	Amount       float64
}

// OrderService handles order intake: creation, cancellation and history
// reads. It never transitions orders beyond CANCELLED; execution belongs to
// the engine.
type OrderService struct {
	orders domain.OrderStore
	trades domain.TradeStore
	prices domain.PriceSource
	notify Notifier
	logger *slog.Logger

	now func() time.Time
}

// NewOrderService creates the intake service. prices and notifier may be
// nil; the initial display price and cancel notifications are then skipped.
func NewOrderService(
	orders domain.OrderStore,
	trades domain.TradeStore,
	prices domain.PriceSource,
	notifier Notifier,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders: orders,
		trades: trades,
		prices: prices,
		notify: notifier,
		logger: logger.With(slog.String("component", "order_service")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service's time source. Tests only.
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrder validates and persists a new PENDING limit order. The current
// market price is attached for display when the feed answers in time; a dead
// feed never blocks intake.
func (s *OrderService) CreateOrder(ctx context.Context, p CreateOrderParams) (domain.LimitOrder, error) {
	now := s.now()
	order := domain.LimitOrder{
		ID:            uuid.New().String(),
		OwnerID:       p.OwnerID,
		Mint:          p.Mint,
		Symbol:        p.Symbol,
		Kind:          p.Kind,
		TriggerPrice:  p.TriggerPrice,
		Amount:        p.Amount,
		TotalSOL:      p.TriggerPrice * p.Amount,
		Status:        domain.OrderStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := order.Validate(); err != nil {
		return domain.LimitOrder{}, fmt.Errorf("service: create order: %w", err)
	}

	if s.prices != nil {
		if price, err := s.prices.Quote(ctx, p.Mint); err == nil {
			order.LastPrice = &price.PriceSOL
			if order.Symbol == "" {
				order.Symbol = price.Symbol
			}
		} else {
			s.logger.Warn("initial quote failed", slog.String("mint", p.Mint), slog.Any("error", err))
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.LimitOrder{}, fmt.Errorf("service: create order: %w", err)
	}

	s.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.Int64("owner_id", order.OwnerID),
		slog.String("kind", string(order.Kind)),
		slog.String("mint", order.Mint),
		slog.Float64("trigger_price", order.TriggerPrice),
	)

	return order, nil
}

// CancelOrder withdraws an order on the owner's behalf. Only PENDING orders
// and claims that have not submitted a transaction can be cancelled; the
// store enforces the transition.
func (s *OrderService) CancelOrder(ctx context.Context, ownerID int64, orderID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service: cancel order %s: %w", orderID, err)
	}
	if order.OwnerID != ownerID {
		// Do not leak other owners' order ids.
		return fmt.Errorf("service: cancel order %s: %w", orderID, domain.ErrNotFound)
	}

	if err := s.orders.Cancel(ctx, orderID); err != nil {
		return fmt.Errorf("service: cancel order %s: %w", orderID, err)
	}

	s.logger.Info("order cancelled", slog.String("order_id", orderID), slog.Int64("owner_id", ownerID))

	if s.notify != nil {
		msg := fmt.Sprintf("%s %g %s at %.9f SOL was cancelled",
			order.Kind, order.Amount, order.Symbol, order.TriggerPrice)
		if err := s.notify.Notify(ctx, notify.EventOrderCancelled, "Limit Order Cancelled", msg); err != nil {
			s.logger.Warn("cancel notification failed", slog.Any("error", err))
		}
	}

	return nil
}

// GetOrder returns one order, scoped to its owner.
func (s *OrderService) GetOrder(ctx context.Context, ownerID int64, orderID string) (domain.LimitOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("service: get order %s: %w", orderID, err)
	}
	if order.OwnerID != ownerID {
		return domain.LimitOrder{}, fmt.Errorf("service: get order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// ListOrders returns the owner's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, ownerID int64) ([]domain.LimitOrder, error) {
	orders, err := s.orders.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: list orders for owner %d: %w", ownerID, err)
	}
	return orders, nil
}

// ListTrades returns the owner's executed trades, newest first.
func (s *OrderService) ListTrades(ctx context.Context, ownerID int64) ([]domain.Trade, error) {
	trades, err := s.trades.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: list trades for owner %d: %w", ownerID, err)
	}
	return trades, nil
}
