package core

import (
	"context"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// TraceRepository defines the interface for job trace data operations.
// Transition must be a single conditional read-modify-write: concurrent calls
// for the same message id may interleave in any order, but each call either
// applies the full field set for its target status or nothing.
type TraceRepository interface {
	Transition(ctx context.Context, req *model.TransitionRequest) (*model.JobTrace, error)
	GetByMessageID(ctx context.Context, messageID string) (*model.JobTrace, error)
	ListByUser(ctx context.Context, opts model.TraceListOptions) (*model.TracePage, error)
}

// ExpireTracesParams groups parameters for TraceReaperRepository.DeleteExpired.
// CreatedWindow bounds the life of any trace from created_at; CompletedWindow
// bounds completed traces from completed_at. Whichever elapses first deletes.
type ExpireTracesParams struct {
	CreatedWindow   time.Duration
	CompletedWindow time.Duration
	BatchSize       int
}

// TraceReaperRepository defines the cleanup operations used by the reaper.
type TraceReaperRepository interface {
	DeleteExpired(ctx context.Context, params ExpireTracesParams) (int64, error)
}

// PropertyRepository defines the interface for property data operations.
type PropertyRepository interface {
	UpsertByURL(ctx context.Context, listing *model.Listing) (*model.Property, error)
	GetByURL(ctx context.Context, url string) (*model.Property, error)
	Deactivate(ctx context.Context, url string) (bool, error)
}

// WatchRepository defines the interface for user/property watch links.
type WatchRepository interface {
	Link(ctx context.Context, lineUserID, propertyID string) (*model.UserProperty, error)
	ListUserProperties(ctx context.Context, lineUserID string) ([]*model.Property, error)
	DistinctUserIDs(ctx context.Context) ([]string, error)
	TouchChecked(ctx context.Context, lineUserID, propertyID string, succeeded bool) error
}

// UserRepository defines the interface for LINE follower records.
type UserRepository interface {
	EnsureUser(ctx context.Context, lineUserID string) (*model.User, bool, error)
}

// DedupeRepository marks message ids as processed with a TTL, best-effort.
type DedupeRepository interface {
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}

// Publisher dispatches job messages to the messaging backend and returns the
// broker-assigned message id used as the trace correlation key.
type Publisher interface {
	PublishScrape(ctx context.Context, msg *model.ScrapeMessage) (string, error)
}

// Notifier pushes messages to a user on the messaging platform.
type Notifier interface {
	PushText(ctx context.Context, lineUserID, text string) error
}

// ListingFetcher retrieves the current state of one listing page.
type ListingFetcher interface {
	Fetch(ctx context.Context, url string) (*model.Listing, error)
}
