package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// WatchlistServiceOptions groups dependencies for WatchlistService.
type WatchlistServiceOptions struct {
	Properties core.PropertyRepository // Required: property repository
	Watches    core.WatchRepository    // Required: watch link repository
	Logger     *slog.Logger            // Optional: structured logger
}

// WatchlistService manages which properties each user watches and records
// scraped property state.
type WatchlistService struct {
	properties core.PropertyRepository
	watches    core.WatchRepository
	logger     *slog.Logger
}

// NewWatchlistService constructs a new WatchlistService.
func NewWatchlistService(opts WatchlistServiceOptions) (*WatchlistService, error) {
	if opts.Properties == nil {
		return nil, errors.New("PropertyRepository is required")
	}
	if opts.Watches == nil {
		return nil, errors.New("WatchRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "watchlist_service")
	}

	return &WatchlistService{
		properties: opts.Properties,
		watches:    opts.Watches,
		logger:     logger,
	}, nil
}

// RecordScrape stores the scraped state of a listing and links it to the
// requesting user's watchlist. Returns the stored property.
func (s *WatchlistService) RecordScrape(ctx context.Context, lineUserID string, listing *model.Listing) (*model.Property, error) {
	prop, err := s.properties.UpsertByURL(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("store scraped property: %w", err)
	}

	if _, err := s.watches.Link(ctx, lineUserID, prop.ID); err != nil {
		return nil, fmt.Errorf("link property to watchlist: %w", err)
	}

	if err := s.watches.TouchChecked(ctx, lineUserID, prop.ID, true); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to record watch check",
			"line_user_id", lineUserID, "property_id", prop.ID, "error", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "scraped property recorded",
			"property_id", prop.ID, "url", prop.URL, "is_active", prop.IsActive)
	}
	return prop, nil
}

// RecordDelisted marks a property inactive after its page disappeared.
func (s *WatchlistService) RecordDelisted(ctx context.Context, url string) error {
	found, err := s.properties.Deactivate(ctx, url)
	if err != nil {
		return fmt.Errorf("deactivate property: %w", err)
	}
	if !found && s.logger != nil {
		s.logger.DebugContext(ctx, "delisted property was never stored", "url", url)
	}
	return nil
}

// Properties returns the listings a user watches.
func (s *WatchlistService) Properties(ctx context.Context, lineUserID string) ([]*model.Property, error) {
	if err := model.ValidateLineUserID(lineUserID); err != nil {
		return nil, err
	}
	return s.watches.ListUserProperties(ctx, lineUserID)
}

// WatcherIDs lists every user with at least one watched property.
func (s *WatchlistService) WatcherIDs(ctx context.Context) ([]string, error) {
	return s.watches.DistinctUserIDs(ctx)
}

// MarkChecked records the outcome of a re-check on a watch link.
func (s *WatchlistService) MarkChecked(ctx context.Context, lineUserID, propertyID string, succeeded bool) error {
	return s.watches.TouchChecked(ctx, lineUserID, propertyID, succeeded)
}
