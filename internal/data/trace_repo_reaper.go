package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 2100 is reserved for mansion-watch trace expiry.
const (
	advisoryLockReaperMajor           = 2100
	advisoryLockReaperExpireCreated   = 1 // minor key for the created_at window
	advisoryLockReaperExpireCompleted = 2 // minor key for the completed_at window
)

// DeleteExpired removes job traces that have outlived either retention
// window: any trace whose created_at is older than CreatedWindow, and any
// completed trace whose completed_at is older than CompletedWindow. Each
// window is swept in its own transaction with its own advisory lock so
// concurrent reaper instances never double-delete. Processes up to BatchSize
// rows per window per call to prevent long locks and I/O spikes.
// Returns the total number of traces deleted.
func (r *TraceRepo) DeleteExpired(ctx context.Context, params core.ExpireTracesParams) (int64, error) {
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.CreatedWindow <= 0 {
		return 0, errors.New("created window must be greater than zero")
	}
	if params.CompletedWindow <= 0 {
		return 0, errors.New("completed window must be greater than zero")
	}

	byCreated, err := r.deleteExpiredBatch(ctx, advisoryLockReaperExpireCreated, `
		DELETE FROM job_traces
		WHERE id IN (
			SELECT id FROM job_traces
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
	`, params.CreatedWindow, params.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("expire traces by created_at: %w", err)
	}

	byCompleted, err := r.deleteExpiredBatch(ctx, advisoryLockReaperExpireCompleted, `
		DELETE FROM job_traces
		WHERE id IN (
			SELECT id FROM job_traces
			WHERE completed_at IS NOT NULL
			  AND completed_at < $1
			ORDER BY completed_at
			LIMIT $2
		)
	`, params.CompletedWindow, params.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("expire traces by completed_at: %w", err)
	}

	return byCreated + byCompleted, nil
}

func (r *TraceRepo) deleteExpiredBatch(
	ctx context.Context,
	lockMinor int,
	query string,
	window time.Duration,
	batchSize int,
) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, lockMinor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-window).UTC()

			res, err := tx.ExecContext(ctx, query, cutoffTime, batchSize)
			if err != nil {
				return err
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
