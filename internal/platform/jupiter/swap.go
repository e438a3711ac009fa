package jupiter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// ChainSubmitter submits a serialized transaction and waits for its fate.
// AwaitConfirmation returns TxUnknown with the context error when the wait is
// cut short.
type ChainSubmitter interface {
	SubmitTransaction(ctx context.Context, txBase64 string) (string, error)
	AwaitConfirmation(ctx context.Context, signature string) (domain.TxStatus, error)
}

// Swapper executes swaps through the Jupiter aggregator: quote, build the
// transaction, submit it through the chain client, wait for confirmation.
// A call is not idempotent and the engine invokes it at most once per claim.
//
// Error contract: a plain error means no submission was observed and the
// attempt may be retried (a transport failure after the send request was
// delivered can in rare cases leave a transaction on chain anyway);
// *domain.SwapRejectedError means the swap can never succeed as specified;
// *domain.SwapAmbiguousError means a transaction was submitted but its
// outcome is unresolved.
type Swapper struct {
	client *Client
	chain  ChainSubmitter
	wallet string
	logger *slog.Logger
}

// NewSwapper creates a Swapper trading from the given wallet public key.
func NewSwapper(client *Client, chain ChainSubmitter, walletPubkey string, logger *slog.Logger) *Swapper {
	return &Swapper{
		client: client,
		chain:  chain,
		wallet: walletPubkey,
		logger: logger.With(slog.String("component", "jupiter_swapper")),
	}
}

// Swap executes the requested trade. BUY swaps SOL into exactly req.Amount
// tokens (ExactOut); SELL swaps exactly req.Amount tokens into SOL (ExactIn).
func (s *Swapper) Swap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	if !req.Kind.Valid() {
		return domain.SwapResult{}, &domain.SwapRejectedError{Reason: "unknown order kind " + string(req.Kind)}
	}
	if req.Amount <= 0 {
		return domain.SwapResult{}, &domain.SwapRejectedError{Reason: "amount must be positive"}
	}

	info, err := s.client.tokenMeta(ctx, req.Mint)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("jupiter: swap %s: %w", req.Mint, asSwapError(err))
	}

	tokenUnits := rawAmount(req.Amount, info.Decimals)

	var quote quoteResponse
	switch req.Kind {
	case domain.OrderKindBuy:
		quote, err = s.client.rawQuote(ctx, s.client.cfg.SolMint, req.Mint, tokenUnits, req.MaxSlippageBps, true)
	case domain.OrderKindSell:
		quote, err = s.client.rawQuote(ctx, req.Mint, s.client.cfg.SolMint, tokenUnits, req.MaxSlippageBps, false)
	}
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("jupiter: swap quote %s: %w", req.Mint, asSwapError(err))
	}

	totalSOL, err := s.solLeg(quote, req.Kind)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("jupiter: swap quote %s: %w", req.Mint, err)
	}

	// Best effort. A missing USD leg never blocks execution.
	solUSD, err := s.client.solPriceUSD(ctx)
	if err != nil {
		s.logger.Warn("sol/usdc quote failed, trade will carry no USD price", slog.Any("error", err))
		solUSD = 0
	}

	swapTx, err := s.client.swapTransaction(ctx, quote, s.wallet)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("jupiter: build swap transaction %s: %w", req.Mint, asSwapError(err))
	}

	sig, err := s.chain.SubmitTransaction(ctx, swapTx.SwapTransaction)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("jupiter: submit swap %s: %w", req.Mint, err)
	}

	if req.OnSubmitted != nil {
		// The transaction is already on chain; confirmation proceeds even
		// if the signature cannot be recorded, and settlement surfaces the
		// conflict.
		if err := req.OnSubmitted(ctx, sig); err != nil {
			s.logger.Warn("submitted-signature callback failed",
				slog.String("signature", sig),
				slog.Any("error", err),
			)
		}
	}

	s.logger.Info("swap submitted",
		slog.String("mint", req.Mint),
		slog.String("kind", string(req.Kind)),
		slog.String("signature", sig),
	)

	status, err := s.chain.AwaitConfirmation(ctx, sig)
	if err != nil {
		return domain.SwapResult{}, &domain.SwapAmbiguousError{Signature: sig, Err: err}
	}
	switch status {
	case domain.TxConfirmed:
		// fall through to result
	case domain.TxFailed:
		return domain.SwapResult{}, &domain.SwapRejectedError{Reason: "transaction " + sig + " failed on chain"}
	default:
		return domain.SwapResult{}, &domain.SwapAmbiguousError{Signature: sig}
	}

	price := totalSOL / req.Amount

	return domain.SwapResult{
		Signature: sig,
		Price:     price,
		TotalSOL:  totalSOL,
		PriceUSD:  price * solUSD,
	}, nil
}

// solLeg extracts the SOL side of the quote: the input for a BUY, the output
// for a SELL.
func (s *Swapper) solLeg(quote quoteResponse, kind domain.OrderKind) (float64, error) {
	raw := quote.OutAmount
	if kind == domain.OrderKindBuy {
		raw = quote.InAmount
	}
	lamports, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sol leg %q: %w", raw, err)
	}
	return lamports / lamportsPerSOL, nil
}

// Compile-time interface check.
var _ domain.SwapService = (*Swapper)(nil)
