package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/scraper"
)

// ProcessorServiceOptions groups dependencies for ProcessorService.
type ProcessorServiceOptions struct {
	Fetcher   core.ListingFetcher   // Required: listing page fetcher
	Watchlist *WatchlistService     // Required: watchlist service
	Hook      *DispatchHook         // Required: trace lifecycle hook
	Dedupe    core.DedupeRepository // Optional: duplicate delivery filter
	Notifier  core.Notifier         // Optional: user notifications
	DedupeTTL time.Duration         // Optional: dedupe memory, defaults to 24h
	Logger    *slog.Logger          // Optional: structured logger
}

// ProcessorService executes one scrape job per delivered message. It drives
// the trace lifecycle through the dispatch hook: processing on pickup, then
// exactly one terminal transition reflecting the outcome.
type ProcessorService struct {
	fetcher   core.ListingFetcher
	watchlist *WatchlistService
	hook      *DispatchHook
	dedupe    core.DedupeRepository
	notifier  core.Notifier
	dedupeTTL time.Duration
	logger    *slog.Logger
}

// NewProcessorService constructs a new ProcessorService.
func NewProcessorService(opts ProcessorServiceOptions) (*ProcessorService, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("ListingFetcher is required")
	}
	if opts.Watchlist == nil {
		return nil, errors.New("WatchlistService is required")
	}
	if opts.Hook == nil {
		return nil, errors.New("DispatchHook is required")
	}

	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProcessorService{
		fetcher:   opts.Fetcher,
		watchlist: opts.Watchlist,
		hook:      opts.Hook,
		dedupe:    opts.Dedupe,
		notifier:  opts.Notifier,
		dedupeTTL: ttl,
		logger:    logger.With("component", "processor_service"),
	}, nil
}

// Process handles one delivered message. The returned error signals the
// caller to nack for redelivery; a nil return means the message is done,
// including the failure outcomes that were recorded on the trace.
func (s *ProcessorService) Process(ctx context.Context, messageID string, payload []byte) error {
	msg, err := model.DecodeScrapeMessage(payload)
	if err != nil {
		// Malformed payloads never become valid on redelivery
		s.logger.ErrorContext(ctx, "dropping undecodable message",
			"message_id", messageID, "error", err)
		return nil
	}

	if s.dedupe != nil {
		claimed, err := s.dedupe.MarkProcessed(ctx, messageID, s.dedupeTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "dedupe check failed, processing anyway",
				"message_id", messageID, "error", err)
		} else if !claimed {
			s.logger.DebugContext(ctx, "duplicate delivery dropped", "message_id", messageID)
			return nil
		}
	}

	s.hook.JobStarted(ctx, messageID, msg)

	switch msg.JobType() {
	case model.JobTypeBatchCheck:
		err = s.processBatchCheck(ctx, messageID, msg)
	default:
		err = s.processPropertyScrape(ctx, messageID, msg)
	}
	return err
}

func (s *ProcessorService) processPropertyScrape(ctx context.Context, messageID string, msg *model.ScrapeMessage) error {
	listing, err := s.fetcher.Fetch(ctx, msg.URL)
	if errors.Is(err, scraper.ErrListingGone) {
		s.hook.JobNotFound(ctx, messageID, msg)
		if delistErr := s.watchlist.RecordDelisted(ctx, msg.URL); delistErr != nil {
			s.logger.WarnContext(ctx, "failed to mark property delisted",
				"url", msg.URL, "error", delistErr)
		}
		return nil
	}
	if err != nil {
		s.hook.JobFailed(ctx, messageID, msg, err)
		return nil
	}

	if msg.CheckOnly {
		prop, getErr := s.watchlist.properties.GetByURL(ctx, msg.URL)
		if getErr == nil {
			if touchErr := s.watchlist.MarkChecked(ctx, msg.LineUserID, prop.ID, true); touchErr != nil {
				s.logger.DebugContext(ctx, "check-only touch skipped",
					"url", msg.URL, "error", touchErr)
			}
		}
		s.hook.JobSucceeded(ctx, messageID, msg, listing)
		return nil
	}

	if _, err := s.watchlist.RecordScrape(ctx, msg.LineUserID, listing); err != nil {
		s.hook.JobFailed(ctx, messageID, msg, err)
		return nil
	}

	s.hook.JobSucceeded(ctx, messageID, msg, listing)
	s.notify(ctx, msg.LineUserID, fmt.Sprintf("物件「%s」をウォッチリストに追加しました。", listing.Name))
	return nil
}

// batchCheckResult is the success payload of a batch_check trace.
type batchCheckResult struct {
	Checked  int `json:"checked"`
	Active   int `json:"active"`
	Delisted int `json:"delisted"`
	Errored  int `json:"errored"`
}

func (s *ProcessorService) processBatchCheck(ctx context.Context, messageID string, msg *model.ScrapeMessage) error {
	props, err := s.watchlist.Properties(ctx, msg.LineUserID)
	if err != nil {
		s.hook.JobFailed(ctx, messageID, msg, err)
		return nil
	}

	var result batchCheckResult
	for _, prop := range props {
		if ctx.Err() != nil {
			s.hook.JobFailed(ctx, messageID, msg, ctx.Err())
			return nil
		}

		result.Checked++
		listing, fetchErr := s.fetcher.Fetch(ctx, prop.URL)
		switch {
		case errors.Is(fetchErr, scraper.ErrListingGone):
			result.Delisted++
			if delistErr := s.watchlist.RecordDelisted(ctx, prop.URL); delistErr != nil {
				s.logger.WarnContext(ctx, "failed to mark property delisted",
					"url", prop.URL, "error", delistErr)
			}
			s.notify(ctx, msg.LineUserID, fmt.Sprintf("物件「%s」の掲載が終了しました。", prop.Name))

		case fetchErr != nil:
			result.Errored++
			s.logger.WarnContext(ctx, "batch check fetch failed",
				"url", prop.URL, "error", fetchErr)
			if touchErr := s.watchlist.MarkChecked(ctx, msg.LineUserID, prop.ID, false); touchErr != nil {
				s.logger.DebugContext(ctx, "watch touch skipped", "error", touchErr)
			}

		default:
			result.Active++
			if _, upErr := s.watchlist.properties.UpsertByURL(ctx, listing); upErr != nil {
				s.logger.WarnContext(ctx, "failed to refresh property state",
					"url", prop.URL, "error", upErr)
			}
			if touchErr := s.watchlist.MarkChecked(ctx, msg.LineUserID, prop.ID, true); touchErr != nil {
				s.logger.DebugContext(ctx, "watch touch skipped", "error", touchErr)
			}
		}
	}

	s.hook.JobSucceeded(ctx, messageID, msg, result)
	return nil
}

func (s *ProcessorService) notify(ctx context.Context, lineUserID, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PushText(ctx, lineUserID, text); err != nil {
		s.logger.WarnContext(ctx, "failed to push notification",
			"line_user_id", lineUserID, "error", err)
	}
}
