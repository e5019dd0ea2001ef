// Package scheduler provides adapters for running the batch check scheduler.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mansionwatch/mansion-watch/config"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// Runner dispatches one batch check job per watching user on an interval.
// Each user gets their own message so a single slow or failing batch never
// blocks the others and each gets its own trace.
type Runner struct {
	watchlist        *service.WatchlistService
	scrapes          *service.ScrapeService
	interval         time.Duration
	startImmediately bool
	logger           *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Watchlist *service.WatchlistService // Required: source of watching users
	Scrapes   *service.ScrapeService    // Required: job dispatcher
	Config    config.SchedulerConfig
	Logger    *slog.Logger
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Watchlist == nil {
		return nil, errors.New("WatchlistService is required")
	}
	if opts.Scrapes == nil {
		return nil, errors.New("ScrapeService is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		watchlist:        opts.Watchlist,
		scrapes:          opts.Scrapes,
		interval:         opts.Config.Interval,
		startImmediately: opts.Config.StartImmediately,
		logger:           opts.Logger.With("component", "scheduler_runner"),
	}, nil
}

// Run starts the scheduler loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	if r.startImmediately {
		r.dispatchRound(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.dispatchRound(ctx)
		}
	}
}

// dispatchRound fans one batch check job out per watching user. Per-user
// failures are logged and skipped so one bad dispatch never stops the round.
func (r *Runner) dispatchRound(ctx context.Context) {
	userIDs, err := r.watchlist.WatcherIDs(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list watching users", "error", err)
		return
	}
	if len(userIDs) == 0 {
		r.logger.DebugContext(ctx, "no watching users, skipping round")
		return
	}

	var dispatched int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		messageID, err := r.scrapes.DispatchBatchCheck(ctx, userID)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to dispatch batch check",
				"line_user_id", userID, "error", err)
			continue
		}
		dispatched++
		r.logger.DebugContext(ctx, "batch check dispatched",
			"line_user_id", userID, "message_id", messageID)
	}

	r.logger.InfoContext(ctx, "batch check round complete",
		"users", len(userIDs), "dispatched", dispatched)
}
