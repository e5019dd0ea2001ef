package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/observability/metrics"
	"github.com/mansionwatch/mansion-watch/internal/observability/statsd"
)

// DispatchHookOptions groups dependencies for DispatchHook.
type DispatchHookOptions struct {
	Traces  *TraceService // Required: trace service
	Logger  *slog.Logger  // Optional: structured logger
	Metrics statsd.Sink   // Optional: metric sink for transition counters
}

// DispatchHook reports job lifecycle events to the trace store on behalf of
// the dispatch and worker pipelines. Reporting is best-effort: a failed or
// rejected transition is logged and swallowed so trace bookkeeping can never
// take down message processing.
type DispatchHook struct {
	traces  *TraceService
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewDispatchHook constructs a new DispatchHook.
func NewDispatchHook(opts DispatchHookOptions) (*DispatchHook, error) {
	if opts.Traces == nil {
		return nil, errors.New("TraceService is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchHook{
		traces:  opts.Traces,
		logger:  logger.With("component", "dispatch_hook"),
		metrics: opts.Metrics,
	}, nil
}

// JobQueued records that a message was published to the broker.
func (h *DispatchHook) JobQueued(ctx context.Context, messageID string, msg *model.ScrapeMessage) {
	h.report(ctx, &model.TransitionRequest{
		MessageID:  messageID,
		To:         model.JobStatusQueued,
		JobType:    msg.JobType(),
		URL:        optionalString(msg.URL),
		LineUserID: optionalString(msg.LineUserID),
		CheckOnly:  msg.CheckOnly,
	})
}

// JobStarted records that a worker picked the message up.
func (h *DispatchHook) JobStarted(ctx context.Context, messageID string, msg *model.ScrapeMessage) {
	h.report(ctx, &model.TransitionRequest{
		MessageID:  messageID,
		To:         model.JobStatusProcessing,
		JobType:    msg.JobType(),
		URL:        optionalString(msg.URL),
		LineUserID: optionalString(msg.LineUserID),
		CheckOnly:  msg.CheckOnly,
	})
}

// JobSucceeded records a successful completion with its result payload.
func (h *DispatchHook) JobSucceeded(ctx context.Context, messageID string, msg *model.ScrapeMessage, result any) {
	var raw json.RawMessage
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to encode job result, storing without it",
				"message_id", messageID, "error", err)
		} else {
			raw = encoded
		}
	}
	h.report(ctx, &model.TransitionRequest{
		MessageID:  messageID,
		To:         model.JobStatusSuccess,
		JobType:    msg.JobType(),
		URL:        optionalString(msg.URL),
		LineUserID: optionalString(msg.LineUserID),
		CheckOnly:  msg.CheckOnly,
		Result:     raw,
	})
}

// JobFailed records a failed completion with its error message.
func (h *DispatchHook) JobFailed(ctx context.Context, messageID string, msg *model.ScrapeMessage, jobErr error) {
	var errMsg *string
	if jobErr != nil {
		s := jobErr.Error()
		errMsg = &s
	}
	h.report(ctx, &model.TransitionRequest{
		MessageID:  messageID,
		To:         model.JobStatusFailed,
		JobType:    msg.JobType(),
		URL:        optionalString(msg.URL),
		LineUserID: optionalString(msg.LineUserID),
		CheckOnly:  msg.CheckOnly,
		Error:      errMsg,
	})
}

// JobNotFound records that the listing behind the job no longer exists.
func (h *DispatchHook) JobNotFound(ctx context.Context, messageID string, msg *model.ScrapeMessage) {
	h.report(ctx, &model.TransitionRequest{
		MessageID:  messageID,
		To:         model.JobStatusNotFound,
		JobType:    msg.JobType(),
		URL:        optionalString(msg.URL),
		LineUserID: optionalString(msg.LineUserID),
		CheckOnly:  msg.CheckOnly,
	})
}

func (h *DispatchHook) report(ctx context.Context, req *model.TransitionRequest) {
	trace, err := h.traces.Transition(ctx, req)
	if err != nil {
		level := slog.LevelWarn
		result := metrics.ResultError
		if errors.Is(err, model.ErrInvalidTransition) {
			level = slog.LevelDebug
			result = metrics.ResultRejected
		}
		h.logger.Log(ctx, level, "trace transition not applied",
			"message_id", req.MessageID,
			"target_status", req.To,
			"error", err,
		)
		h.emitTransition(req, nil, result)
		return
	}
	h.emitTransition(req, trace, metrics.ResultApplied)
}

func (h *DispatchHook) emitTransition(req *model.TransitionRequest, trace *model.JobTrace, result string) {
	if h.metrics == nil {
		return
	}
	m := metrics.TransitionMetric{
		JobType: string(req.JobType),
		Status:  string(req.To),
		Result:  result,
	}
	if trace != nil && trace.Status.Terminal() && trace.StartedAt != nil && trace.CompletedAt != nil {
		m.Duration = trace.CompletedAt.Sub(*trace.StartedAt)
	}
	metrics.EmitTransition(h.metrics, m)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
