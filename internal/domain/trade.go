package domain

import "time"

// Trade is the immutable record of an executed limit order. At most one trade
// exists per order; the unique order_id constraint in the store enforces this
// even when settlement is replayed by the reconciler.
type Trade struct {
	ID      string
	OrderID string
	OwnerID int64

	Mint   string
	Symbol string
	Kind   OrderKind

	Price    float64 // realized SOL per token
	Amount   float64 // token units
	TotalSOL float64 // realized SOL notional
	PriceUSD float64 // realized USDC per token, 0 when the quote had no USD leg

	Signature  string
	ExecutedAt time.Time
}
