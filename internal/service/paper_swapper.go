package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// PaperSwapper fills every swap instantly at the current quote without
// touching the chain. Dev mode runs the full engine against it.
type PaperSwapper struct {
	prices domain.PriceSource
	logger *slog.Logger
}

// NewPaperSwapper creates a paper-trading swap service backed by the given
// price source.
func NewPaperSwapper(prices domain.PriceSource, logger *slog.Logger) *PaperSwapper {
	return &PaperSwapper{
		prices: prices,
		logger: logger.With(slog.String("component", "paper_swapper")),
	}
}

// Swap fills the request at the current market price with a synthetic
// signature.
func (p *PaperSwapper) Swap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	price, err := p.prices.Quote(ctx, req.Mint)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("paper swap %s: %w", req.Mint, err)
	}

	result := domain.SwapResult{
		Signature: "paper-" + uuid.New().String(),
		Price:     price.PriceSOL,
		TotalSOL:  price.PriceSOL * req.Amount,
		PriceUSD:  price.PriceUSD,
	}

	if req.OnSubmitted != nil {
		if err := req.OnSubmitted(ctx, result.Signature); err != nil {
			p.logger.Warn("submitted-signature callback failed", slog.Any("error", err))
		}
	}

	p.logger.Info("paper swap filled",
		slog.String("mint", req.Mint),
		slog.String("kind", string(req.Kind)),
		slog.Float64("price", result.Price),
		slog.Float64("total_sol", result.TotalSOL),
	)

	// Mimic a little confirmation latency so dev mode behaves like the
	// real path.
	select {
	case <-ctx.Done():
		return domain.SwapResult{}, ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.SwapService = (*PaperSwapper)(nil)
