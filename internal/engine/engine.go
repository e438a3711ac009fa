package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Engine runs the scheduler and the reconciler as one unit with a shared
// lifetime.
type Engine struct {
	scheduler  *Scheduler
	reconciler *Reconciler
	logger     *slog.Logger
}

// New assembles the engine from its two loops.
func New(scheduler *Scheduler, reconciler *Reconciler, logger *slog.Logger) *Engine {
	return &Engine{
		scheduler:  scheduler,
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// Run starts both loops and blocks until the context is cancelled or one of
// them fails. Context cancellation is a clean shutdown, not an error.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := e.scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("scheduler: %w", err)
	})

	g.Go(func() error {
		err := e.reconciler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reconciler: %w", err)
	})

	err := g.Wait()
	if err != nil {
		e.logger.Error("engine stopped with error", slog.Any("error", err))
		return err
	}

	e.logger.Info("engine stopped cleanly")
	return nil
}
