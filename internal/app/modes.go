package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvolkov/sol-limit-bot/internal/config"
	"github.com/mvolkov/sol-limit-bot/internal/engine"
	"github.com/mvolkov/sol-limit-bot/internal/server"
	"github.com/mvolkov/sol-limit-bot/internal/server/handler"
	"github.com/mvolkov/sol-limit-bot/internal/service"
)

// shutdownGrace is how long the HTTP server gets to drain in-flight requests.
const shutdownGrace = 10 * time.Second

// EngineMode runs the execution engine only: scheduler, executor pool and
// reconciler. Order intake happens elsewhere (an api-mode instance or the
// chat bot) against the shared store.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	return a.buildEngine(deps).Run(ctx)
}

// APIMode runs the HTTP intake server only. Orders created here sit PENDING
// until an engine instance picks them up.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	return a.runServer(ctx, deps)
}

// FullMode runs the engine and the intake server in one process. Dev mode
// takes this path too, on in-memory stores and paper swaps.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.buildEngine(deps).Run(ctx)
	})

	if a.cfg.Server.Enabled {
		g.Go(func() error {
			return a.runServer(ctx, deps)
		})
	}

	return g.Wait()
}

// buildEngine assembles the scheduler, executor and reconciler from the
// wired dependencies.
func (a *App) buildEngine(deps *Dependencies) *engine.Engine {
	cfg := engineConfig(a.cfg.Engine)

	exec := engine.NewExecutor(deps.Orders, deps.Swapper, deps.Limiter, deps.Notifier, cfg, a.logger)
	sched := engine.NewScheduler(deps.Orders, deps.Prices, deps.PriceCache, deps.Locks, exec, cfg, a.logger)
	rec := engine.NewReconciler(deps.Orders, deps.Chain, deps.Notifier, cfg, a.logger)

	return engine.New(sched, rec, a.logger)
}

// runServer starts the intake API and shuts it down when the context ends.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	svc := service.NewOrderService(deps.Orders, deps.Trades, deps.Prices, deps.Notifier, a.logger)

	srv := server.New(a.cfg.Server.Port, server.Handlers{
		Health: handler.NewHealthHandler(),
		Orders: handler.NewOrderHandler(svc, a.logger),
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("app: server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// engineConfig copies the tuning knobs into the engine's config type.
func engineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		PollInterval:      cfg.PollInterval.Duration,
		WorkerCount:       cfg.WorkerCount,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff.Duration,
		MaxSlippageBps:    cfg.MaxSlippageBps,
		SwapTimeout:       cfg.SwapTimeout.Duration,
		ConfirmTimeout:    cfg.ConfirmTimeout.Duration,
		StaleAfter:        cfg.StaleAfter.Duration,
		ReconcileInterval: cfg.ReconcileInterval.Duration,
		ReconcileGrace:    cfg.ReconcileGrace.Duration,
		TickLockTTL:       cfg.TickLockTTL.Duration,
		SwapsPerOwner:     cfg.SwapsPerOwner,
		SwapsWindow:       cfg.SwapsWindow.Duration,
	}
}
