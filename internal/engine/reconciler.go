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

// Reconciler repairs orders left EXECUTING by a crashed or interrupted
// worker. It runs once at startup and then periodically, resolving each
// stale claim from the chain's view of the recorded signature.
type Reconciler struct {
	orders domain.OrderStore
	chain  domain.ChainClient
	notify Notifier
	cfg    Config
	logger *slog.Logger

	now func() time.Time
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(
	orders domain.OrderStore,
	chain domain.ChainClient,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		orders: orders,
		chain:  chain,
		notify: notifier,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "reconciler")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the reconciler's time source. Tests only.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Run performs a startup pass immediately, then one per reconcile interval
// until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started", slog.Duration("interval", r.cfg.ReconcileInterval))
	defer r.logger.Info("reconciler stopped")

	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		r.ReconcileOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReconcileOnce resolves every order stuck in EXECUTING longer than the
// staleness threshold. Individual failures are logged and retried on the
// next pass.
func (r *Reconciler) ReconcileOnce(ctx context.Context) {
	stale, err := r.orders.ListStaleExecuting(ctx, r.cfg.StaleAfter)
	if err != nil {
		r.logger.Error("list stale executing orders failed", slog.Any("error", err))
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("reconciling stale orders", slog.Int("count", len(stale)))

	for _, order := range stale {
		if err := r.resolve(ctx, order); err != nil {
			r.logger.Error("reconcile failed",
				slog.String("order_id", order.ID),
				slog.Any("error", err),
			)
		}
	}
}

// resolve settles one stale claim. A claim without a signature never
// reached submission, so the order simply returns to the queue. A claim
// with a signature is settled from the transaction's on-chain fate.
func (r *Reconciler) resolve(ctx context.Context, order domain.LimitOrder) error {
	log := r.logger.With(slog.String("order_id", order.ID))

	if order.Signature == nil || *order.Signature == "" {
		log.Info("stale claim without submission, requeueing")
		return r.settle(ctx, order.ID, domain.Requeue())
	}

	sig := *order.Signature
	if r.chain == nil {
		// No chain client wired (paper trading). Nothing can resolve the
		// signature, so the claim stands until an operator intervenes.
		log.Warn("no chain client, cannot resolve signature", slog.String("signature", sig))
		return nil
	}
	status, err := r.chain.TransactionStatus(ctx, sig)
	if err != nil {
		return fmt.Errorf("engine: transaction status %s: %w", sig, err)
	}

	switch status {
	case domain.TxConfirmed:
		return r.settleConfirmed(ctx, order, sig, log)

	case domain.TxFailed:
		log.Warn("submitted transaction failed on chain", slog.String("signature", sig))
		return r.settleAttemptFailure(ctx, order, "transaction "+sig+" failed on chain", log)

	default:
		// The cluster has no record of the signature. Within the grace
		// window the transaction may still land; past it the blockhash has
		// expired and it never will.
		age := r.now().Sub(order.UpdatedAt)
		if age < r.cfg.ReconcileGrace {
			log.Debug("transaction still unresolved, waiting",
				slog.String("signature", sig),
				slog.Duration("age", age),
			)
			return nil
		}
		log.Warn("transaction never landed", slog.String("signature", sig))
		return r.settleAttemptFailure(ctx, order, "transaction "+sig+" expired unconfirmed", log)
	}
}

// settleConfirmed records the fill for a transaction that landed while no
// worker was watching. The realized legs died with the crashed process, so
// the trade carries the last observed price as its record.
func (r *Reconciler) settleConfirmed(ctx context.Context, order domain.LimitOrder, sig string, log *slog.Logger) error {
	price := order.TriggerPrice
	if order.LastPrice != nil && *order.LastPrice > 0 {
		price = *order.LastPrice
	}

	trade := domain.Trade{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		OwnerID:    order.OwnerID,
		Mint:       order.Mint,
		Symbol:     order.Symbol,
		Kind:       order.Kind,
		Price:      price,
		Amount:     order.Amount,
		TotalSOL:   price * order.Amount,
		Signature:  sig,
		ExecutedAt: r.now(),
	}

	if err := r.settle(ctx, order.ID, domain.Filled(trade)); err != nil {
		return err
	}

	log.Info("recovered confirmed fill", slog.String("signature", sig))
	r.sendNotification(ctx, notify.EventOrderFilled, "Limit Order Filled", fmt.Sprintf(
		"%s %g %s confirmed after recovery\nSignature: %s",
		order.Kind, order.Amount, order.Symbol, sig,
	))

	return nil
}

// settleAttemptFailure applies the executor's retry rule to an attempt the
// chain reported (or implied) as dead.
func (r *Reconciler) settleAttemptFailure(ctx context.Context, order domain.LimitOrder, cause string, log *slog.Logger) error {
	attempt := order.RetryCount + 1
	if attempt > r.cfg.MaxRetries {
		reason := fmt.Sprintf("retries exhausted after %d attempts: %s", order.RetryCount+1, cause)
		if err := r.settle(ctx, order.ID, domain.Failed(reason)); err != nil {
			return err
		}
		log.Error("order failed", slog.String("reason", reason))
		r.sendNotification(ctx, notify.EventOrderFailed, "Limit Order Failed", fmt.Sprintf(
			"%s %g %s gave up after %d attempts: %s",
			order.Kind, order.Amount, order.Symbol, order.RetryCount+1, cause,
		))
		return nil
	}

	nextAttempt := r.now().Add(time.Duration(attempt) * r.cfg.RetryBackoff)
	log.Info("releasing dead attempt for retry",
		slog.Int("attempt", attempt),
		slog.Time("next_attempt_at", nextAttempt),
	)
	return r.settle(ctx, order.ID, domain.Retry(nextAttempt))
}

// settle applies a settlement, tolerating orders that reached a terminal
// state between listing and resolution.
func (r *Reconciler) settle(ctx context.Context, id string, s domain.Settlement) error {
	err := r.orders.Settle(ctx, id, s)
	if errors.Is(err, domain.ErrOrderTerminal) {
		r.logger.Debug("order already settled", slog.String("order_id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: settle order %s (%s): %w", id, s.Outcome, err)
	}
	return nil
}

func (r *Reconciler) sendNotification(ctx context.Context, event, title, message string) {
	if r.notify == nil {
		return
	}
	if err := r.notify.Notify(ctx, event, title, message); err != nil {
		r.logger.Warn("notification failed", slog.String("event", event), slog.Any("error", err))
	}
}
