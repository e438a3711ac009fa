package domain

import (
	"time"
)

// OrderKind indicates whether this is a buy or sell limit order.
type OrderKind string

const (
	OrderKindBuy  OrderKind = "BUY"
	OrderKindSell OrderKind = "SELL"
)

// Valid reports whether the kind is one of the two known values.
func (k OrderKind) Valid() bool {
	return k == OrderKindBuy || k == OrderKindSell
}

// OrderStatus tracks the limit order lifecycle.
type OrderStatus string

const (
	// OrderStatusPending means the order is waiting for its trigger condition.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusExecuting means a worker has claimed the order and a swap
	// attempt is (or was) in flight.
	OrderStatusExecuting OrderStatus = "EXECUTING"
	// OrderStatusFilled means the swap confirmed on-chain. Terminal.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusFailed means execution was abandoned. Terminal.
	OrderStatusFailed OrderStatus = "FAILED"
	// OrderStatusCancelled means the owner withdrew the order. Terminal.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status accepts no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// LimitOrder is a standing instruction to trade a fixed token amount once the
// market price crosses the trigger price. Orders are never physically deleted;
// terminal rows are retained for history.
type LimitOrder struct {
	ID      string
	OwnerID int64 // chat identity of the owning user

	Mint   string // token mint address
	Symbol string
	Kind   OrderKind

	TriggerPrice float64 // SOL per token
	Amount       float64 // token units
	TotalSOL     float64 // TriggerPrice * Amount, fixed at creation

	// LastPrice is a display-only cache of the most recently observed market
	// price. The trigger decision always uses the quote fetched in the same
	// scheduler tick, never this field.
	LastPrice *float64

	// Signature is set once a swap transaction has been submitted. It is
	// only ever non-nil while the order is EXECUTING or FILLED.
	Signature *string

	RetryCount int
	// NextAttemptAt gates rediscovery by the scheduler after a transient
	// failure. The zero value means eligible immediately.
	NextAttemptAt time.Time

	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancellable reports whether a user cancel may still be honoured: the order
// must be PENDING, or claimed but with no transaction submitted yet. Once a
// signature exists the swap is potentially on-chain and cancellation is
// rejected.
func (o LimitOrder) Cancellable() bool {
	if o.Status == OrderStatusPending {
		return true
	}
	return o.Status == OrderStatusExecuting && o.Signature == nil
}

// Validate checks the creation-time invariants.
func (o LimitOrder) Validate() error {
	if !o.Kind.Valid() {
		return ErrInvalidOrder
	}
	if o.Mint == "" || o.OwnerID == 0 {
		return ErrInvalidOrder
	}
	if o.TriggerPrice <= 0 || o.Amount <= 0 {
		return ErrInvalidOrder
	}
	return nil
}
