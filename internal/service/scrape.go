package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// ScrapeServiceOptions groups dependencies for ScrapeService.
type ScrapeServiceOptions struct {
	Publisher core.Publisher // Required: message publisher
	Hook      *DispatchHook  // Required: trace lifecycle hook
	Logger    *slog.Logger   // Optional: structured logger
}

// ScrapeService dispatches scrape jobs to the messaging backend and records
// the queued trace for each dispatched message.
type ScrapeService struct {
	publisher core.Publisher
	hook      *DispatchHook
	logger    *slog.Logger
}

// NewScrapeService constructs a new ScrapeService.
func NewScrapeService(opts ScrapeServiceOptions) (*ScrapeService, error) {
	if opts.Publisher == nil {
		return nil, errors.New("Publisher is required")
	}
	if opts.Hook == nil {
		return nil, errors.New("DispatchHook is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "scrape_service")
	}

	return &ScrapeService{
		publisher: opts.Publisher,
		hook:      opts.Hook,
		logger:    logger,
	}, nil
}

// DispatchScrape validates and publishes one single-property scrape job.
// Returns the broker message id the caller can poll status with.
func (s *ScrapeService) DispatchScrape(ctx context.Context, url, lineUserID string, checkOnly bool) (string, error) {
	msg := &model.ScrapeMessage{
		Timestamp:  time.Now().UTC(),
		URL:        url,
		LineUserID: lineUserID,
		CheckOnly:  checkOnly,
	}
	return s.dispatch(ctx, msg)
}

// DispatchBatchCheck publishes one check-only job covering every watched
// property of the user.
func (s *ScrapeService) DispatchBatchCheck(ctx context.Context, lineUserID string) (string, error) {
	msg := &model.ScrapeMessage{
		Timestamp:  time.Now().UTC(),
		LineUserID: lineUserID,
		CheckOnly:  true,
	}
	return s.dispatch(ctx, msg)
}

func (s *ScrapeService) dispatch(ctx context.Context, msg *model.ScrapeMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	messageID, err := s.publisher.PublishScrape(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("publish scrape message: %w", err)
	}

	s.hook.JobQueued(ctx, messageID, msg)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "scrape job dispatched",
			"message_id", messageID,
			"job_type", msg.JobType(),
			"check_only", msg.CheckOnly,
		)
	}
	return messageID, nil
}
