// Package bot runs the archiver's long-lived components: the Telegram update
// listener and the maintenance scheduler, and shuts the transcription pool
// down once both have stopped.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Listener consumes updates until ctx is cancelled. *tgbot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Closer releases a component after the listener has stopped.
type Closer interface {
	Close() error
}

// Bot owns the lifecycle of the listener, the scheduler and the pool.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler *Scheduler
	pool      Closer
}

// NewBot creates the orchestrator. pool may be nil when transcription is
// disabled.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, pool Closer) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
		pool:      pool,
	}
}

// Run starts the listener and the scheduler and blocks until ctx is cancelled
// or one of them fails. Queued transcription jobs are drained before Run
// returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram update listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram update listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram update listener stopped without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	b.closePool()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) closePool() {
	if b.pool == nil {
		return
	}
	b.logger.Info("Draining transcription pool...")
	if err := b.pool.Close(); err != nil {
		b.logger.Error("Error closing transcription pool", "error", err)
		return
	}
	b.logger.Info("Transcription pool closed.")
}
