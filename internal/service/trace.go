// Package service contains the business logic layer between the HTTP/worker
// adapters and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// ErrInvalidPagination is returned when limit or skip are out of range.
var ErrInvalidPagination = errors.New("invalid pagination parameters")

// TraceServiceOptions groups dependencies for TraceService.
type TraceServiceOptions struct {
	Repo   core.TraceRepository // Required: trace repository
	Logger *slog.Logger         // Optional: structured logger
}

// TraceService provides business logic for job trace operations.
//
// This service manages:
// - Status transitions along the queued -> processing -> terminal lifecycle
// - Status lookup by message id
// - Paginated per-user job listings.
type TraceService struct {
	repo   core.TraceRepository
	logger *slog.Logger
}

// NewTraceService constructs a new TraceService.
func NewTraceService(opts TraceServiceOptions) (*TraceService, error) {
	if opts.Repo == nil {
		return nil, errors.New("TraceRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "trace_service")
	}

	return &TraceService{
		repo:   opts.Repo,
		logger: logger,
	}, nil
}

// MustNewTraceService constructs a new TraceService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewTraceService(opts TraceServiceOptions) *TraceService {
	svc, err := NewTraceService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create TraceService: %v", err))
	}
	return svc
}

// Transition applies one status change for a message id, creating the trace
// implicitly when the id is unseen.
func (s *TraceService) Transition(ctx context.Context, req *model.TransitionRequest) (*model.JobTrace, error) {
	trace, err := s.repo.Transition(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "trace transition applied",
			"message_id", trace.MessageID,
			"status", trace.Status,
			"job_type", trace.JobType,
		)
	}
	return trace, nil
}

// GetStatus retrieves the trace for a message id.
func (s *TraceService) GetStatus(ctx context.Context, messageID string) (*model.JobTrace, error) {
	return s.repo.GetByMessageID(ctx, messageID)
}

const (
	defaultJobsLimit = 10
	maxJobsLimit     = 100
)

// JobsForUser returns one page of a user's job traces, newest first, plus
// the total count. A zero limit falls back to the default; negative limit or
// skip is rejected with ErrInvalidPagination before any store access.
func (s *TraceService) JobsForUser(ctx context.Context, lineUserID string, limit, skip int) (*model.TracePage, error) {
	if err := model.ValidateLineUserID(lineUserID); err != nil {
		return nil, err
	}
	if limit < 0 || skip < 0 {
		return nil, fmt.Errorf("%w: limit and skip must be non-negative", ErrInvalidPagination)
	}
	if limit == 0 {
		limit = defaultJobsLimit
	}
	if limit > maxJobsLimit {
		limit = maxJobsLimit
	}

	return s.repo.ListByUser(ctx, model.TraceListOptions{
		LineUserID: lineUserID,
		Limit:      limit,
		Skip:       skip,
	})
}
