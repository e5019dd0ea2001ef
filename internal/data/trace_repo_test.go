package data

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceRepo_Transition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTraceRepo(db, TraceRepoConfig{})
	ctx := context.Background()

	t.Run("implicit create at queued", func(t *testing.T) {
		trace, err := repo.Transition(ctx, &model.TransitionRequest{
			MessageID:  "create-1",
			To:         model.JobStatusQueued,
			JobType:    model.JobTypePropertyScrape,
			URL:        strPtr("https://suumo.jp/ms/chuko/tokyo/nc_1"),
			LineUserID: strPtr("U1"),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, trace.ID)
		assert.Equal(t, model.JobStatusQueued, trace.Status)
		assert.Nil(t, trace.StartedAt)
		assert.Nil(t, trace.CompletedAt)
	})

	t.Run("full lifecycle", func(t *testing.T) {
		for _, to := range []model.JobStatus{
			model.JobStatusQueued, model.JobStatusProcessing, model.JobStatusSuccess,
		} {
			_, err := repo.Transition(ctx, &model.TransitionRequest{
				MessageID: "life-1",
				To:        to,
				JobType:   model.JobTypePropertyScrape,
				Result:    json.RawMessage(`{"name":"test"}`),
			})
			require.NoError(t, err)
		}

		trace, err := repo.GetByMessageID(ctx, "life-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusSuccess, trace.Status)
		require.NotNil(t, trace.StartedAt)
		require.NotNil(t, trace.CompletedAt)
		assert.JSONEq(t, `{"name":"test"}`, string(trace.Result))
	})

	t.Run("duplicate queued returns existing", func(t *testing.T) {
		first, err := repo.Transition(ctx, &model.TransitionRequest{
			MessageID: "dup-1", To: model.JobStatusQueued, JobType: model.JobTypePropertyScrape,
		})
		require.NoError(t, err)

		second, err := repo.Transition(ctx, &model.TransitionRequest{
			MessageID: "dup-1", To: model.JobStatusQueued, JobType: model.JobTypePropertyScrape,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	})

	t.Run("backward transition is rejected", func(t *testing.T) {
		_, err := repo.Transition(ctx, &model.TransitionRequest{
			MessageID: "back-1", To: model.JobStatusFailed, JobType: model.JobTypePropertyScrape,
			Error: strPtr("timeout"),
		})
		require.NoError(t, err)

		_, err = repo.Transition(ctx, &model.TransitionRequest{
			MessageID: "back-1", To: model.JobStatusProcessing, JobType: model.JobTypePropertyScrape,
		})
		require.ErrorIs(t, err, model.ErrInvalidTransition)

		trace, err := repo.GetByMessageID(ctx, "back-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, trace.Status)
		require.NotNil(t, trace.Error)
		assert.Equal(t, "timeout", *trace.Error)
	})
}

func TestTraceRepo_ListByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tp := NewFixedTimeProvider(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	repo := NewTraceRepo(db, TraceRepoConfig{TimeProvider: tp})
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		tp.AddTime(time.Minute)
		_, err := repo.Transition(ctx, &model.TransitionRequest{
			MessageID:  fmt.Sprintf("list-%02d", i),
			To:         model.JobStatusQueued,
			JobType:    model.JobTypePropertyScrape,
			LineUserID: strPtr("Ulist"),
		})
		require.NoError(t, err)
	}

	page, err := repo.ListByUser(ctx, model.TraceListOptions{LineUserID: "Ulist"})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 10)
	assert.Equal(t, 15, page.TotalCount)
	assert.Equal(t, "list-14", page.Jobs[0].MessageID)

	page, err = repo.ListByUser(ctx, model.TraceListOptions{LineUserID: "Ulist", Limit: 10, Skip: 10})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 5)
	assert.Equal(t, "list-04", page.Jobs[0].MessageID)
}

func TestTraceRepo_DeleteExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tp := NewFixedTimeProvider(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	repo := NewTraceRepo(db, TraceRepoConfig{TimeProvider: tp})
	ctx := context.Background()

	_, err := repo.Transition(ctx, &model.TransitionRequest{
		MessageID: "reap-stuck", To: model.JobStatusQueued, JobType: model.JobTypePropertyScrape,
	})
	require.NoError(t, err)

	tp.AddTime(time.Hour)
	_, err = repo.Transition(ctx, &model.TransitionRequest{
		MessageID: "reap-done", To: model.JobStatusSuccess, JobType: model.JobTypePropertyScrape,
	})
	require.NoError(t, err)

	params := core.ExpireTracesParams{
		CreatedWindow:   168 * time.Hour,
		CompletedWindow: 72 * time.Hour,
		BatchSize:       100,
	}

	tp.AddTime(79 * time.Hour)
	deleted, err := repo.DeleteExpired(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	_, err = repo.GetByMessageID(ctx, "reap-done")
	require.ErrorIs(t, err, ErrTraceNotFound)
	_, err = repo.GetByMessageID(ctx, "reap-stuck")
	require.NoError(t, err)

	tp.AddTime(100 * time.Hour)
	deleted, err = repo.DeleteExpired(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	_, err = repo.GetByMessageID(ctx, "reap-stuck")
	require.ErrorIs(t, err, ErrTraceNotFound)
}
