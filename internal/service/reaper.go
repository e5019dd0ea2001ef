package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mansionwatch/mansion-watch/config"
	"github.com/mansionwatch/mansion-watch/internal/core"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo   core.TraceReaperRepository // Required: reaper repository
	Config config.ReaperConfig        // Required: reaper configuration
	Logger *slog.Logger               // Optional: structured logger
}

// ReaperService deletes expired job traces on an interval. A trace expires
// when either retention window elapses: a fixed window from created_at that
// bounds every trace including ones stuck queued or processing, and a
// shorter window from completed_at for finished traces.
type ReaperService struct {
	repo   core.TraceReaperRepository
	config config.ReaperConfig
	logger *slog.Logger
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("TraceReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"created_max_age", opts.Config.CreatedMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
		)
	}

	return &ReaperService{
		repo:   opts.Repo,
		config: opts.Config,
		logger: logger,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter prevents thundering herd when multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.sweep(ctx); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "initial trace sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				if s.logger != nil {
					s.logger.ErrorContext(ctx, "trace sweep failed", "error", err)
				}
				// Keep running despite errors
			}
		}
	}
}

// Sweep runs one expiry pass outside the loop, for callers that control
// their own scheduling.
func (s *ReaperService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, core.ExpireTracesParams{
		CreatedWindow:   s.config.CreatedMaxAge,
		CompletedWindow: s.config.CompletedMaxAge,
		BatchSize:       s.config.BatchSize,
	})
}

func (s *ReaperService) sweep(ctx context.Context) error {
	start := time.Now()
	deleted, err := s.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("delete expired traces: %w", err)
	}

	if s.logger != nil && deleted > 0 {
		s.logger.InfoContext(ctx, "expired traces deleted",
			"count", deleted,
			"elapsed", time.Since(start),
		)
	}
	return nil
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
