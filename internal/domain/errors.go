package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order parameters")
	// ErrOrderTerminal is returned when a write targets an order that already
	// reached FILLED, FAILED or CANCELLED.
	ErrOrderTerminal = errors.New("order is in a terminal state")
	// ErrNotCancellable is returned when a cancel arrives after the order was
	// claimed and a transaction signature exists.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	ErrLockHeld       = errors.New("lock already held")
)

// SwapRejectedError marks a terminal business failure from the swap service
// (insufficient funds, unknown token). Retrying cannot help, so the executor
// fails the order immediately without consuming a retry.
type SwapRejectedError struct {
	Reason string
}

func (e *SwapRejectedError) Error() string {
	return "swap rejected: " + e.Reason
}

// SwapAmbiguousError marks a swap whose transaction may or may not have
// landed on-chain: it was submitted (Signature may be set) but confirmation
// never resolved. The executor must not guess an outcome; the order stays
// EXECUTING for the reconciler.
type SwapAmbiguousError struct {
	Signature string
	Err       error
}

func (e *SwapAmbiguousError) Error() string {
	if e.Err != nil {
		return "swap outcome unknown: " + e.Err.Error()
	}
	return "swap outcome unknown"
}

func (e *SwapAmbiguousError) Unwrap() error {
	return e.Err
}
