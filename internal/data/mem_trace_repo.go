package data

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// MemTraceRepo is an in-memory TraceRepository with the same transition
// semantics as the Postgres implementation. It backs unit tests that need
// lifecycle behavior without a database.
type MemTraceRepo struct {
	mu           sync.Mutex
	byMessageID  map[string]*model.JobTrace
	timeProvider TimeProvider
}

// NewMemTraceRepo creates an empty in-memory trace repository.
func NewMemTraceRepo(tp TimeProvider) *MemTraceRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemTraceRepo{
		byMessageID:  make(map[string]*model.JobTrace),
		timeProvider: tp,
	}
}

// Transition applies one status change under the repository mutex, creating
// the trace when the message id is unseen.
func (r *MemTraceRepo) Transition(ctx context.Context, req *model.TransitionRequest) (*model.JobTrace, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeProvider.Now().UTC()
	existing, ok := r.byMessageID[req.MessageID]
	if !ok {
		trace := model.NewTraceAt(req, now)
		trace.ID = uuid.NewString()
		r.byMessageID[req.MessageID] = trace
		return cloneTrace(trace), nil
	}

	next, err := model.ApplyTransition(existing, req, now)
	if err != nil {
		return nil, err
	}
	r.byMessageID[req.MessageID] = next
	return cloneTrace(next), nil
}

// GetByMessageID retrieves a trace, or ErrTraceNotFound.
func (r *MemTraceRepo) GetByMessageID(ctx context.Context, messageID string) (*model.JobTrace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trace, ok := r.byMessageID[messageID]
	if !ok {
		return nil, ErrTraceNotFound
	}
	return cloneTrace(trace), nil
}

// ListByUser pages through one user's traces, newest first.
func (r *MemTraceRepo) ListByUser(ctx context.Context, opts model.TraceListOptions) (*model.TracePage, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultTraceListLimit
	}
	if opts.Limit > maxTraceListLimit {
		opts.Limit = maxTraceListLimit
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.JobTrace
	for _, trace := range r.byMessageID {
		if trace.LineUserID != nil && *trace.LineUserID == opts.LineUserID {
			matched = append(matched, trace)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := opts.Skip
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := make([]*model.JobTrace, 0, end-start)
	for _, trace := range matched[start:end] {
		page = append(page, cloneTrace(trace))
	}

	return &model.TracePage{
		Jobs:       page,
		TotalCount: total,
		Limit:      opts.Limit,
		Skip:       opts.Skip,
	}, nil
}

// DeleteExpired sweeps both retention windows, mirroring the SQL reaper.
func (r *MemTraceRepo) DeleteExpired(ctx context.Context, params core.ExpireTracesParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeProvider.Now().UTC()
	createdCutoff := now.Add(-params.CreatedWindow)
	completedCutoff := now.Add(-params.CompletedWindow)

	var deleted int64
	for id, trace := range r.byMessageID {
		if trace.CreatedAt.Before(createdCutoff) ||
			(trace.CompletedAt != nil && trace.CompletedAt.Before(completedCutoff)) {
			delete(r.byMessageID, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneTrace(t *model.JobTrace) *model.JobTrace {
	dup := *t
	if t.Result != nil {
		dup.Result = append(dup.Result[:0:0], t.Result...)
	}
	return &dup
}
