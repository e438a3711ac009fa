// Package engine contains the limit-order execution engine: the scheduler
// loop that watches prices, the trigger evaluator, the execution coordinator
// and the crash-recovery reconciler. The engine is the only writer of order
// status transitions.
package engine

import "github.com/mvolkov/sol-limit-bot/internal/domain"

// Triggered decides whether an order's condition is satisfied at the given
// market price. It is a pure function of its inputs.
//
// A BUY fires when the price has dropped to the trigger or below; a SELL
// fires when the price has risen to the trigger or above. Both boundaries
// are inclusive. Orders that are not PENDING never fire, whatever the price:
// a cancelled or claimed order observed by a stale scheduler snapshot must
// not be dispatched again.
func Triggered(order domain.LimitOrder, price float64) bool {
	if order.Status != domain.OrderStatusPending {
		return false
	}
	if price <= 0 {
		return false
	}

	switch order.Kind {
	case domain.OrderKindBuy:
		return price <= order.TriggerPrice
	case domain.OrderKindSell:
		return price >= order.TriggerPrice
	default:
		return false
	}
}
