// Package model defines the core data types of the mansion-watch job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType classifies a dispatched job message.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus is the lifecycle state of a job trace.
type JobStatus string

const (
	// JobTypePropertyScrape scrapes a single listing URL for one user.
	JobTypePropertyScrape JobType = "property_scrape"
	// JobTypeBatchCheck re-verifies every watched property of one user.
	JobTypeBatchCheck JobType = "batch_check"

	// JobStatusQueued indicates the job message was dispatched but not picked up.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a worker started on the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusSuccess indicates the job finished and produced a result.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusNotFound indicates the listing no longer exists (404).
	JobStatusNotFound JobStatus = "not_found"
)

// ErrInvalidTransition is returned when a requested status is not reachable
// from the stored status. Callers log it and move on; the trace simply does
// not reflect the illegal step.
var ErrInvalidTransition = errors.New("invalid job trace transition")

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypePropertyScrape || t == JobTypeBatchCheck
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusSuccess, JobStatusFailed, JobStatusNotFound:
		return true
	}
	return false
}

// Terminal returns true for statuses that permit no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusNotFound
}

// Rank orders statuses along the lifecycle: queued < processing < terminal.
// Transitions are valid only when the rank strictly increases.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	default:
		return 2
	}
}

// CanTransitionTo reports whether to is a valid successor of s.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	return s.Rank() < to.Rank()
}

// JobTrace is the persisted lifecycle record of one dispatched job message.
type JobTrace struct {
	ID          string          `json:"id"                     db:"id"`
	MessageID   string          `json:"message_id"             db:"message_id"`
	JobType     JobType         `json:"job_type"               db:"job_type"`
	Status      JobStatus       `json:"status"                 db:"status"`
	URL         *string         `json:"url,omitempty"          db:"url"`
	LineUserID  *string         `json:"line_user_id,omitempty" db:"line_user_id"`
	CheckOnly   bool            `json:"check_only"             db:"check_only"`
	CreatedAt   time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"             db:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Error       *string         `json:"error,omitempty"        db:"error"`
	Result      json.RawMessage `json:"result,omitempty"       db:"result"`
}

// TransitionRequest carries one requested status change for a message id.
// Context fields (URL, LineUserID, CheckOnly, JobType) only matter when the
// transition implicitly creates the trace; Error is applied for failed,
// Result for success.
type TransitionRequest struct {
	MessageID  string
	To         JobStatus
	JobType    JobType
	URL        *string
	LineUserID *string
	CheckOnly  bool
	Error      *string
	Result     json.RawMessage
}

// Validate checks the request fields before any store access.
func (r *TransitionRequest) Validate() error {
	if strings.TrimSpace(r.MessageID) == "" {
		return errors.New("message id is required")
	}
	if !r.To.Valid() {
		return fmt.Errorf("invalid target status: %q", r.To)
	}
	if !r.JobType.Valid() {
		return fmt.Errorf("invalid job type: %q", r.JobType)
	}
	return nil
}

// NewTraceAt builds the trace created implicitly by the first transition seen
// for a message id. Timestamps implied by the target status rank are set so
// that started_at exists for processing-or-later and completed_at exists
// exactly for terminal states.
func NewTraceAt(req *TransitionRequest, now time.Time) *JobTrace {
	t := &JobTrace{
		MessageID:  req.MessageID,
		JobType:    req.JobType,
		Status:     req.To,
		URL:        req.URL,
		LineUserID: req.LineUserID,
		CheckOnly:  req.CheckOnly,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.To.Rank() >= JobStatusProcessing.Rank() {
		started := now
		t.StartedAt = &started
	}
	if req.To.Terminal() {
		completed := now
		t.CompletedAt = &completed
		t.Error = req.Error
		t.Result = append(json.RawMessage(nil), req.Result...)
	}
	return t
}

// ApplyTransition returns a copy of existing advanced to req.To, or
// ErrInvalidTransition when the stored status does not permit it. A repeated
// queued request against a queued trace is an idempotent no-op: at-least-once
// delivery makes duplicate creates routine and they must not be treated as
// errors. The returned trace shares no mutable state with the input.
func ApplyTransition(existing *JobTrace, req *TransitionRequest, now time.Time) (*JobTrace, error) {
	if existing.Status == JobStatusQueued && req.To == JobStatusQueued {
		dup := *existing
		return &dup, nil
	}
	if !existing.Status.CanTransitionTo(req.To) {
		return nil, fmt.Errorf("%w: %s -> %s (message_id=%s)",
			ErrInvalidTransition, existing.Status, req.To, existing.MessageID)
	}

	next := *existing
	next.Status = req.To
	next.UpdatedAt = now
	if req.To.Rank() >= JobStatusProcessing.Rank() && next.StartedAt == nil {
		started := now
		next.StartedAt = &started
	}
	if req.To.Terminal() {
		completed := now
		next.CompletedAt = &completed
		if req.Error != nil {
			next.Error = req.Error
		}
		if req.Result != nil {
			next.Result = append(json.RawMessage(nil), req.Result...)
		}
	}
	return &next, nil
}

// TraceListOptions paginates per-user trace listings.
type TraceListOptions struct {
	LineUserID string
	Limit      int
	Skip       int
}

// TracePage is one page of a per-user listing plus the unpaginated total.
type TracePage struct {
	Jobs       []*JobTrace `json:"jobs"`
	TotalCount int         `json:"total_count"`
	Limit      int         `json:"limit"`
	Skip       int         `json:"skip"`
}
