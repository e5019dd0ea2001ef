package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mansionwatch/mansion-watch/internal/data/pgxutil"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// TraceRepoConfig holds configuration options for the trace repository.
type TraceRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// TraceRepo provides database operations for job trace lifecycle records.
type TraceRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTraceRepo creates a new TraceRepo with the given database connection and configuration.
func NewTraceRepo(db *sql.DB, cfg TraceRepoConfig) *TraceRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &TraceRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const traceColumns = `
  id,
  message_id,
  job_type,
  status,
  url,
  line_user_id,
  check_only,
  created_at,
  updated_at,
  started_at,
  completed_at,
  error,
  result
`

// statusRankSQL orders statuses queued < processing < terminal so the upsert
// condition can enforce forward-only transitions inside a single statement.
const statusRankSQL = `CASE %s WHEN 'queued' THEN 0 WHEN 'processing' THEN 1 ELSE 2 END`

// transitionSQL creates the trace at the requested status when the message id
// is unseen, or advances an existing trace when its rank is strictly lower.
// The conditional DO UPDATE is what makes concurrent duplicate deliveries
// safe: a stale retransmission never overwrites a later state.
var transitionSQL = `
  INSERT INTO job_traces AS t (
    message_id, job_type, status, url, line_user_id, check_only,
    created_at, updated_at, started_at, completed_at, error, result
  )
  VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, $9, $10, $11)
  ON CONFLICT (message_id) DO UPDATE SET
    status       = EXCLUDED.status,
    updated_at   = EXCLUDED.updated_at,
    started_at   = COALESCE(t.started_at, EXCLUDED.started_at),
    completed_at = COALESCE(t.completed_at, EXCLUDED.completed_at),
    error        = COALESCE(EXCLUDED.error, t.error),
    result       = COALESCE(EXCLUDED.result, t.result)
  WHERE ` + fmt.Sprintf(statusRankSQL, "t.status") + ` < ` + fmt.Sprintf(statusRankSQL, "EXCLUDED.status") + `
  RETURNING ` + traceColumns

// Transition applies one validated status change as a single conditional
// upsert. Unknown message ids are created at the requested status with all
// rank-implied timestamps. When the stored status does not permit the change,
// model.ErrInvalidTransition is returned and the record is left untouched;
// a duplicate queued request against a queued trace returns the stored record.
func (r *TraceRepo) Transition(ctx context.Context, req *model.TransitionRequest) (*model.JobTrace, error) {
	if req == nil {
		return nil, errors.New("transition request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var startedAt, completedAt *time.Time
	if req.To.Rank() >= model.JobStatusProcessing.Rank() {
		startedAt = &now
	}
	if req.To.Terminal() {
		completedAt = &now
	}

	result := req.Result
	if req.To != model.JobStatusSuccess {
		result = nil
	}
	var errMsg *string
	if req.To == model.JobStatusFailed {
		errMsg = req.Error
	}

	row := r.DB.QueryRowContext(ctx, transitionSQL,
		req.MessageID,
		string(req.JobType),
		string(req.To),
		req.URL,
		req.LineUserID,
		req.CheckOnly,
		now,
		startedAt,
		completedAt,
		errMsg,
		result,
	)

	trace, err := scanTraceFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r.rejectTransition(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("transition job trace: %w", err)
	}
	return trace, nil
}

// rejectTransition classifies an upsert that matched nothing: either the
// duplicate-queued no-op, or a genuine invalid transition against the stored
// status. The race where the record vanishes between the upsert and this read
// (reaper delete) is reported as not found.
func (r *TraceRepo) rejectTransition(
	ctx context.Context,
	req *model.TransitionRequest,
) (*model.JobTrace, error) {
	current, err := r.GetByMessageID(ctx, req.MessageID)
	if err != nil {
		return nil, fmt.Errorf("inspect rejected transition: %w", err)
	}
	if current.Status == model.JobStatusQueued && req.To == model.JobStatusQueued {
		return current, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s (message_id=%s)",
		model.ErrInvalidTransition, current.Status, req.To, req.MessageID)
}

// GetByMessageID retrieves a job trace by its message id.
func (r *TraceRepo) GetByMessageID(ctx context.Context, messageID string) (*model.JobTrace, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+traceColumns+`
		FROM job_traces
		WHERE message_id = $1
	`, messageID)

	trace, err := scanTraceFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTraceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job trace: %w", err)
	}
	return trace, nil
}

const (
	defaultTraceListLimit = 10
	maxTraceListLimit     = 100
)

// ListByUser returns traces owned by a user ordered by created_at descending,
// plus the total count independent of pagination.
func (r *TraceRepo) ListByUser(ctx context.Context, opts model.TraceListOptions) (*model.TracePage, error) {
	if opts.LineUserID == "" {
		return nil, errors.New("line user id is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultTraceListLimit
	}
	if opts.Limit > maxTraceListLimit {
		opts.Limit = maxTraceListLimit
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM job_traces WHERE line_user_id = $1
	`, opts.LineUserID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count job traces by user: %w", err)
	}

	query := `
		SELECT ` + traceColumns + `
		FROM job_traces
		WHERE line_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var traces []*model.JobTrace
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, opts.LineUserID, opts.Limit, opts.Skip)
		if err != nil {
			return fmt.Errorf("query job traces by user: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobTrace])
		if err != nil {
			return fmt.Errorf("collect job traces: %w", err)
		}
		traces = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return &model.TracePage{
		Jobs:       traces,
		TotalCount: total,
		Limit:      opts.Limit,
		Skip:       opts.Skip,
	}, nil
}

type traceRowScanner interface {
	Scan(dest ...any) error
}

type traceRowData struct {
	url, lineUserID, errMsg sql.NullString
	startedAt, completedAt  sql.NullTime
	result                  []byte
}

func (d *traceRowData) scanInto(scanner traceRowScanner, trace *model.JobTrace) error {
	return scanner.Scan(
		&trace.ID,
		&trace.MessageID,
		&trace.JobType,
		&trace.Status,
		&d.url,
		&d.lineUserID,
		&trace.CheckOnly,
		&trace.CreatedAt,
		&trace.UpdatedAt,
		&d.startedAt,
		&d.completedAt,
		&d.errMsg,
		&d.result,
	)
}

func (d *traceRowData) apply(trace *model.JobTrace) {
	trace.URL = cloneNullableString(d.url)
	trace.LineUserID = cloneNullableString(d.lineUserID)
	trace.Error = cloneNullableString(d.errMsg)
	trace.StartedAt = cloneNullableTime(d.startedAt)
	trace.CompletedAt = cloneNullableTime(d.completedAt)
	if len(d.result) > 0 {
		trace.Result = append(json.RawMessage(nil), d.result...)
	}
}

func scanTraceFromRow(scanner traceRowScanner) (*model.JobTrace, error) {
	trace := &model.JobTrace{}
	var data traceRowData
	if err := data.scanInto(scanner, trace); err != nil {
		return nil, err
	}
	data.apply(trace)
	return trace, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
