package domain

import (
	"context"
	"time"
)

// TokenPrice is a point-in-time market price for a token, quoted in SOL with
// an optional USD leg. The engine assumes nothing beyond "current at call
// time".
type TokenPrice struct {
	Mint     string
	Symbol   string
	PriceSOL float64
	PriceUSD float64
	AsOf     time.Time
}

// PriceSource provides current market prices. Failures are treated as
// transient: the scheduler skips the affected token for one tick.
type PriceSource interface {
	Quote(ctx context.Context, mint string) (TokenPrice, error)
}

// SwapRequest describes a single swap submission for a triggered order.
type SwapRequest struct {
	OwnerID        int64
	Mint           string
	Symbol         string
	Kind           OrderKind
	Amount         float64 // token units
	MaxSlippageBps int

	// OnSubmitted, when set, is invoked with the transaction signature as
	// soon as the submission returns, before the confirmation wait. Callers
	// use it to persist the signature while the swap is still in flight;
	// until it runs, the order looks unsubmitted and a cancel can slip in.
	// A failure here does not abort the swap.
	OnSubmitted func(ctx context.Context, signature string) error
}

// SwapResult is the outcome of a successfully confirmed swap.
type SwapResult struct {
	Signature string
	Price     float64 // realized SOL per token
	TotalSOL  float64
	PriceUSD  float64
}

// SwapService submits swaps through the external DEX aggregator. A call is
// not idempotent — resubmitting can create a second on-chain transaction —
// so the executor invokes it at most once per claim. Errors are classified
// as plain (pre-submit, retryable), *SwapRejectedError (terminal business)
// or *SwapAmbiguousError (submitted but unconfirmed).
type SwapService interface {
	Swap(ctx context.Context, req SwapRequest) (SwapResult, error)
}

// TxStatus is the chain-side view of a submitted transaction.
type TxStatus string

const (
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
	TxUnknown   TxStatus = "unknown"
)

// ChainClient answers transaction-status queries for the reconciler.
type ChainClient interface {
	TransactionStatus(ctx context.Context, signature string) (TxStatus, error)
}
