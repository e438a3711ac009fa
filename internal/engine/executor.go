package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/notify"
)

// Notifier delivers order lifecycle events to the owner's channels.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the engine tuning knobs, copied out of the application
// configuration at wiring time.
type Config struct {
	PollInterval      time.Duration
	WorkerCount       int
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxSlippageBps    int
	SwapTimeout       time.Duration
	ConfirmTimeout    time.Duration
	StaleAfter        time.Duration
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
	TickLockTTL       time.Duration
	SwapsPerOwner     int
	SwapsWindow       time.Duration
}

// Executor is the execution coordinator. It claims a triggered order,
// submits the swap at most once, and settles the outcome. All status
// transitions go through conditional store updates, so losing a race at any
// step is safe.
type Executor struct {
	orders  domain.OrderStore
	swapper domain.SwapService
	limiter domain.RateLimiter
	notify  Notifier
	cfg     Config
	logger  *slog.Logger

	now func() time.Time
}

// NewExecutor creates an execution coordinator. limiter and notifier may be
// nil; rate limiting and notifications are then disabled.
func NewExecutor(
	orders domain.OrderStore,
	swapper domain.SwapService,
	limiter domain.RateLimiter,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		orders:  orders,
		swapper: swapper,
		limiter: limiter,
		notify:  notifier,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the executor's time source. Tests only.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Execute runs one triggered order through the claim/swap/settle state
// machine. price is the market price that fired the trigger, used only for
// logging; the swap executes at the current aggregator quote.
func (e *Executor) Execute(ctx context.Context, order domain.LimitOrder, price float64) error {
	log := e.logger.With(
		slog.String("order_id", order.ID),
		slog.String("mint", order.Mint),
		slog.String("kind", string(order.Kind)),
	)

	claimed, err := e.orders.TryClaim(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("engine: claim order %s: %w", order.ID, err)
	}
	if !claimed {
		// Another worker or instance won the race, or the order was
		// cancelled between listing and dispatch.
		log.Debug("claim lost, skipping")
		return nil
	}

	// Re-read under the claim. A cancel that landed before the claim makes
	// TryClaim fail above; one that landed after it flips the row to
	// CANCELLED and must stop us here, before money moves.
	fresh, err := e.orders.GetByID(ctx, order.ID)
	if err != nil {
		// The claim stands but we cannot see the row. Leave it EXECUTING;
		// the reconciler will requeue it once it goes stale.
		return fmt.Errorf("engine: re-read order %s: %w", order.ID, err)
	}
	if fresh.Status != domain.OrderStatusExecuting {
		log.Warn("order moved after claim, skipping", slog.String("status", string(fresh.Status)))
		return nil
	}

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx, ownerKey(fresh.OwnerID), e.cfg.SwapsPerOwner, e.cfg.SwapsWindow)
		if err != nil {
			// The limiter is advisory. Trading proceeds when it is down.
			log.Warn("rate limiter unavailable, proceeding", slog.Any("error", err))
		} else if !allowed {
			log.Info("owner rate limited, releasing claim")
			if err := e.orders.Settle(ctx, fresh.ID, domain.Requeue()); err != nil {
				return fmt.Errorf("engine: requeue rate-limited order %s: %w", fresh.ID, err)
			}
			return nil
		}
	}

	log.Info("executing order",
		slog.Float64("trigger_price", fresh.TriggerPrice),
		slog.Float64("market_price", price),
		slog.Int("retry_count", fresh.RetryCount),
	)

	swapCtx, cancel := context.WithTimeout(ctx, e.cfg.SwapTimeout+e.cfg.ConfirmTimeout)
	defer cancel()

	result, err := e.swapper.Swap(swapCtx, domain.SwapRequest{
		OwnerID:        fresh.OwnerID,
		Mint:           fresh.Mint,
		Symbol:         fresh.Symbol,
		Kind:           fresh.Kind,
		Amount:         fresh.Amount,
		MaxSlippageBps: e.cfg.MaxSlippageBps,
		// Persist the signature the moment the submission returns. This
		// closes the cancel window: a cancel is only accepted while
		// tx_signature is NULL, and by the time the confirmation wait
		// starts the row carries the signature.
		OnSubmitted: func(ctx context.Context, sig string) error {
			if err := e.orders.SetSignature(ctx, fresh.ID, sig); err != nil {
				log.Error("could not record submitted signature", slog.String("signature", sig), slog.Any("error", err))
				return fmt.Errorf("engine: record signature for order %s: %w", fresh.ID, err)
			}
			return nil
		},
	})
	if err != nil {
		return e.settleFailure(ctx, fresh, err, log)
	}

	trade := domain.Trade{
		ID:         uuid.New().String(),
		OrderID:    fresh.ID,
		OwnerID:    fresh.OwnerID,
		Mint:       fresh.Mint,
		Symbol:     fresh.Symbol,
		Kind:       fresh.Kind,
		Price:      result.Price,
		Amount:     fresh.Amount,
		TotalSOL:   result.TotalSOL,
		PriceUSD:   result.PriceUSD,
		Signature:  result.Signature,
		ExecutedAt: e.now(),
	}

	if err := e.orders.Settle(ctx, fresh.ID, domain.Filled(trade)); err != nil {
		if errors.Is(err, domain.ErrOrderTerminal) {
			// A confirmed on-chain fill could not be recorded because the
			// order reached a terminal state first. Money moved; this needs
			// eyes, not a retry.
			log.Error("confirmed fill conflicts with terminal order state",
				slog.String("signature", result.Signature),
				slog.Float64("total_sol", result.TotalSOL),
			)
			e.sendNotification(ctx, notify.EventOrderFilled, "Limit Order Fill Conflict", fmt.Sprintf(
				"%s %g %s filled on chain (signature %s, total %.9f SOL) but the order was already settled or cancelled. Manual review required.",
				fresh.Kind, fresh.Amount, fresh.Symbol, result.Signature, result.TotalSOL,
			))
			return nil
		}
		return fmt.Errorf("engine: settle filled order %s: %w", fresh.ID, err)
	}

	log.Info("order filled",
		slog.String("signature", result.Signature),
		slog.Float64("price", result.Price),
		slog.Float64("total_sol", result.TotalSOL),
	)

	e.sendNotification(ctx, notify.EventOrderFilled, "Limit Order Filled", fmt.Sprintf(
		"%s %g %s at %.9f SOL (total %.9f SOL)\nSignature: %s",
		fresh.Kind, fresh.Amount, fresh.Symbol, result.Price, result.TotalSOL, result.Signature,
	))

	return nil
}

// settleFailure maps a swap error onto a store transition: rejected swaps
// fail terminally, ambiguous submissions keep the claim for the reconciler,
// anything else retries with a linear backoff until retries run out.
func (e *Executor) settleFailure(ctx context.Context, order domain.LimitOrder, swapErr error, log *slog.Logger) error {
	var rejected *domain.SwapRejectedError
	if errors.As(swapErr, &rejected) {
		log.Warn("swap rejected", slog.String("reason", rejected.Reason))
		if err := e.orders.Settle(ctx, order.ID, domain.Failed(rejected.Reason)); err != nil {
			return fmt.Errorf("engine: settle rejected order %s: %w", order.ID, err)
		}
		e.sendNotification(ctx, notify.EventOrderFailed, "Limit Order Failed", fmt.Sprintf(
			"%s %g %s could not be executed: %s", order.Kind, order.Amount, order.Symbol, rejected.Reason,
		))
		return nil
	}

	var ambiguous *domain.SwapAmbiguousError
	if errors.As(swapErr, &ambiguous) {
		log.Warn("swap outcome unknown, leaving for reconciler",
			slog.String("signature", ambiguous.Signature),
			slog.Any("error", swapErr),
		)
		if ambiguous.Signature != "" {
			if err := e.orders.SetSignature(ctx, order.ID, ambiguous.Signature); err != nil {
				return fmt.Errorf("engine: record signature for order %s: %w", order.ID, err)
			}
		}
		// Deliberately no settlement. The order stays EXECUTING until the
		// reconciler resolves the transaction's fate.
		return nil
	}

	attempt := order.RetryCount + 1
	if attempt > e.cfg.MaxRetries {
		reason := fmt.Sprintf("retries exhausted after %d attempts: %v", order.RetryCount+1, swapErr)
		log.Error("order failed", slog.String("reason", reason))
		if err := e.orders.Settle(ctx, order.ID, domain.Failed(reason)); err != nil {
			return fmt.Errorf("engine: settle failed order %s: %w", order.ID, err)
		}
		e.sendNotification(ctx, notify.EventOrderFailed, "Limit Order Failed", fmt.Sprintf(
			"%s %g %s gave up after %d attempts: %v", order.Kind, order.Amount, order.Symbol, order.RetryCount+1, swapErr,
		))
		return nil
	}

	nextAttempt := e.now().Add(time.Duration(attempt) * e.cfg.RetryBackoff)
	log.Warn("swap failed, retrying",
		slog.Int("attempt", attempt),
		slog.Time("next_attempt_at", nextAttempt),
		slog.Any("error", swapErr),
	)
	if err := e.orders.Settle(ctx, order.ID, domain.Retry(nextAttempt)); err != nil {
		return fmt.Errorf("engine: settle retry order %s: %w", order.ID, err)
	}

	return nil
}

func (e *Executor) sendNotification(ctx context.Context, event, title, message string) {
	if e.notify == nil {
		return
	}
	if err := e.notify.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("event", event), slog.Any("error", err))
	}
}

func ownerKey(ownerID int64) string {
	return fmt.Sprintf("owner:%d", ownerID)
}
