package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// tickLockKey guards one scheduler tick across engine instances.
const tickLockKey = "engine:tick"

// Scheduler is the polling loop. Each tick it lists active orders, quotes
// each distinct mint once, refreshes display prices, evaluates triggers and
// hands fired orders to the executor pool.
type Scheduler struct {
	orders domain.OrderStore
	prices domain.PriceSource
	cache  domain.PriceCache
	locks  domain.LockManager
	exec   *Executor
	cfg    Config
	logger *slog.Logger
}

// NewScheduler creates the polling loop. cache and locks may be nil: the
// display cache is then skipped and ticks run unguarded, which is fine for a
// single instance.
func NewScheduler(
	orders domain.OrderStore,
	prices domain.PriceSource,
	cache domain.PriceCache,
	locks domain.LockManager,
	exec *Executor,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		orders: orders,
		prices: prices,
		cache:  cache,
		locks:  locks,
		exec:   exec,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until the context is cancelled. The first tick fires
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", slog.Duration("poll_interval", s.cfg.PollInterval))
	defer s.logger.Info("scheduler stopped")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one scheduling pass. When a lock manager is configured and
// another instance holds the tick lock, the pass is skipped; the order claim
// in the executor is what actually guarantees at-most-one execution.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, tickLockKey, s.cfg.TickLockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Debug("tick lock held elsewhere, skipping")
			return
		}
		if err != nil {
			s.logger.Warn("tick lock unavailable, proceeding", slog.Any("error", err))
		} else {
			defer release()
		}
	}

	active, err := s.orders.ListActive(ctx, "")
	if err != nil {
		s.logger.Error("list active orders failed", slog.Any("error", err))
		return
	}
	if len(active) == 0 {
		return
	}

	byMint := lo.GroupBy(active, func(o domain.LimitOrder) string { return o.Mint })

	s.logger.Debug("tick",
		slog.Int("orders", len(active)),
		slog.Int("mints", len(byMint)),
	)

	type firedOrder struct {
		order domain.LimitOrder
		price float64
	}
	var fired []firedOrder

	for mint, orders := range byMint {
		price, err := s.prices.Quote(ctx, mint)
		if err != nil {
			// One token's feed being down must not stall the rest.
			s.logger.Warn("quote failed, skipping mint this tick",
				slog.String("mint", mint),
				slog.Any("error", err),
			)
			continue
		}

		s.refreshDisplayPrice(ctx, mint, orders, price)

		for _, order := range orders {
			if Triggered(order, price.PriceSOL) {
				fired = append(fired, firedOrder{order: order, price: price.PriceSOL})
			}
		}
	}

	if len(fired) == 0 {
		return
	}

	s.logger.Info("orders triggered", slog.Int("count", len(fired)))

	var g errgroup.Group
	g.SetLimit(s.cfg.WorkerCount)
	for _, f := range fired {
		g.Go(func() error {
			if err := s.exec.Execute(ctx, f.order, f.price); err != nil {
				s.logger.Error("execution failed",
					slog.String("order_id", f.order.ID),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// refreshDisplayPrice writes the observed price to the order rows and the
// shared cache. Both are advisory; failures only log.
func (s *Scheduler) refreshDisplayPrice(ctx context.Context, mint string, orders []domain.LimitOrder, price domain.TokenPrice) {
	ids := lo.Map(orders, func(o domain.LimitOrder, _ int) string { return o.ID })

	if err := s.orders.UpdateLastPrice(ctx, ids, price.PriceSOL); err != nil {
		s.logger.Warn("display price update failed", slog.String("mint", mint), slog.Any("error", err))
	}

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, mint, price.PriceSOL, price.AsOf); err != nil {
			s.logger.Warn("price cache write failed", slog.String("mint", mint), slog.Any("error", err))
		}
	}
}
