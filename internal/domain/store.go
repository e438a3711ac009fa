package domain

import (
	"context"
	"time"
)

// Settlement is the outcome the execution coordinator (or reconciler) writes
// back for a claimed order. Exactly one of the constructor helpers below
// should be used; the store applies the whole settlement in one transaction.
type Settlement struct {
	Outcome SettleOutcome

	// Trade is set for SettleFilled and recorded idempotently: replaying the
	// same settlement never produces a second trade row.
	Trade *Trade

	// NextAttemptAt is set for SettleRetry; the scheduler will not pick the
	// order up again before this instant.
	NextAttemptAt time.Time

	// Reason is set for SettleFailed, for the terminal notification.
	Reason string
}

// SettleOutcome enumerates the legal transitions out of EXECUTING.
type SettleOutcome string

const (
	// SettleFilled transitions EXECUTING -> FILLED and records the trade.
	SettleFilled SettleOutcome = "filled"
	// SettleRetry transitions EXECUTING -> PENDING and increments the retry
	// counter; used for pre-submit transient failures with retries remaining.
	SettleRetry SettleOutcome = "retry"
	// SettleFailed transitions EXECUTING -> FAILED.
	SettleFailed SettleOutcome = "failed"
	// SettleRequeue transitions EXECUTING -> PENDING without touching the
	// retry counter; used by the reconciler for claims that never reached the
	// swap submission gate.
	SettleRequeue SettleOutcome = "requeue"
)

// Filled builds a FILLED settlement carrying the trade record.
func Filled(trade Trade) Settlement {
	return Settlement{Outcome: SettleFilled, Trade: &trade}
}

// Retry builds a retry settlement releasing the claim until nextAttemptAt.
func Retry(nextAttemptAt time.Time) Settlement {
	return Settlement{Outcome: SettleRetry, NextAttemptAt: nextAttemptAt}
}

// Failed builds a terminal FAILED settlement.
func Failed(reason string) Settlement {
	return Settlement{Outcome: SettleFailed, Reason: reason}
}

// Requeue builds a settlement that releases a stuck claim unchanged.
func Requeue() Settlement {
	return Settlement{Outcome: SettleRequeue}
}

// OrderStore persists limit orders. All mutating operations are conditional
// on the stored status, which makes the store the single synchronization
// point between concurrent engine instances.
type OrderStore interface {
	Create(ctx context.Context, order LimitOrder) error
	GetByID(ctx context.Context, id string) (LimitOrder, error)

	// ListActive returns PENDING orders whose next_attempt_at has passed.
	// A non-empty mint restricts the result to that token.
	ListActive(ctx context.Context, mint string) ([]LimitOrder, error)

	// ListStaleExecuting returns EXECUTING orders not touched for at least
	// olderThan. These are candidates for reconciliation.
	ListStaleExecuting(ctx context.Context, olderThan time.Duration) ([]LimitOrder, error)

	// TryClaim atomically transitions PENDING -> EXECUTING. It returns false
	// without error when the order is no longer PENDING (claimed elsewhere,
	// cancelled, or settled) — the expected outcome of a lost race.
	TryClaim(ctx context.Context, id string) (bool, error)

	// SetSignature records the transaction signature on an EXECUTING order.
	// Called as soon as a swap submission returns, so a crash before
	// settlement leaves enough state for the reconciler.
	SetSignature(ctx context.Context, id, signature string) error

	// Settle applies a terminal or retry transition together with the trade
	// record (when filled) in one transaction. Settling an order that is not
	// EXECUTING returns ErrOrderTerminal.
	Settle(ctx context.Context, id string, s Settlement) error

	// Cancel transitions to CANCELLED from PENDING or signatureless
	// EXECUTING. It returns ErrNotCancellable otherwise and ErrNotFound for
	// unknown ids.
	Cancel(ctx context.Context, id string) error

	// UpdateLastPrice refreshes the display price cache on the given rows.
	// It never touches status or updated-at ordering relied on by TryClaim.
	UpdateLastPrice(ctx context.Context, ids []string, price float64) error

	ListByOwner(ctx context.Context, ownerID int64) ([]LimitOrder, error)
}

// TradeStore reads executed trades. Trades are written only through
// OrderStore.Settle so the order transition and the trade insert share a
// transaction.
type TradeStore interface {
	GetByOrderID(ctx context.Context, orderID string) (Trade, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Trade, error)
}
