package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"queued to processing", JobStatusQueued, JobStatusProcessing, true},
		{"queued to success", JobStatusQueued, JobStatusSuccess, true},
		{"queued to failed", JobStatusQueued, JobStatusFailed, true},
		{"queued to not_found", JobStatusQueued, JobStatusNotFound, true},
		{"queued to queued", JobStatusQueued, JobStatusQueued, false},
		{"processing to success", JobStatusProcessing, JobStatusSuccess, true},
		{"processing to queued", JobStatusProcessing, JobStatusQueued, false},
		{"processing to processing", JobStatusProcessing, JobStatusProcessing, false},
		{"success to processing", JobStatusSuccess, JobStatusProcessing, false},
		{"success to failed", JobStatusSuccess, JobStatusFailed, false},
		{"failed to success", JobStatusFailed, JobStatusSuccess, false},
		{"not_found to processing", JobStatusNotFound, JobStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusSuccess.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusNotFound.Terminal())
}

func TestTransitionRequest_Validate(t *testing.T) {
	valid := TransitionRequest{
		MessageID: "m1",
		To:        JobStatusQueued,
		JobType:   JobTypePropertyScrape,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.MessageID = "  "
	require.Error(t, missing.Validate())

	badStatus := valid
	badStatus.To = "done"
	require.Error(t, badStatus.Validate())

	badType := valid
	badType.JobType = "scan"
	require.Error(t, badType.Validate())
}

func TestNewTraceAt(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	url := "https://suumo.jp/ms/chuko/tokyo/sc_104/nc_1"
	user := "U123"

	t.Run("queued sets no lifecycle timestamps", func(t *testing.T) {
		trace := NewTraceAt(&TransitionRequest{
			MessageID:  "m1",
			To:         JobStatusQueued,
			JobType:    JobTypePropertyScrape,
			URL:        &url,
			LineUserID: &user,
		}, now)

		assert.Equal(t, JobStatusQueued, trace.Status)
		assert.Equal(t, now, trace.CreatedAt)
		assert.Equal(t, now, trace.UpdatedAt)
		assert.Nil(t, trace.StartedAt)
		assert.Nil(t, trace.CompletedAt)
	})

	t.Run("processing sets started_at", func(t *testing.T) {
		trace := NewTraceAt(&TransitionRequest{
			MessageID: "m2",
			To:        JobStatusProcessing,
			JobType:   JobTypeBatchCheck,
		}, now)

		require.NotNil(t, trace.StartedAt)
		assert.Equal(t, now, *trace.StartedAt)
		assert.Nil(t, trace.CompletedAt)
	})

	t.Run("terminal sets everything", func(t *testing.T) {
		errMsg := "boom"
		trace := NewTraceAt(&TransitionRequest{
			MessageID: "m3",
			To:        JobStatusFailed,
			JobType:   JobTypePropertyScrape,
			Error:     &errMsg,
		}, now)

		require.NotNil(t, trace.StartedAt)
		require.NotNil(t, trace.CompletedAt)
		assert.Equal(t, now, *trace.CompletedAt)
		require.NotNil(t, trace.Error)
		assert.Equal(t, "boom", *trace.Error)
	})
}

func TestApplyTransition(t *testing.T) {
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	later := created.Add(5 * time.Second)

	queued := func() *JobTrace {
		return NewTraceAt(&TransitionRequest{
			MessageID: "m1",
			To:        JobStatusQueued,
			JobType:   JobTypePropertyScrape,
		}, created)
	}

	t.Run("queued to processing", func(t *testing.T) {
		next, err := ApplyTransition(queued(), &TransitionRequest{
			MessageID: "m1", To: JobStatusProcessing, JobType: JobTypePropertyScrape,
		}, later)
		require.NoError(t, err)
		assert.Equal(t, JobStatusProcessing, next.Status)
		assert.Equal(t, created, next.CreatedAt)
		assert.Equal(t, later, next.UpdatedAt)
		require.NotNil(t, next.StartedAt)
		assert.Equal(t, later, *next.StartedAt)
	})

	t.Run("duplicate queued is a no-op", func(t *testing.T) {
		existing := queued()
		next, err := ApplyTransition(existing, &TransitionRequest{
			MessageID: "m1", To: JobStatusQueued, JobType: JobTypePropertyScrape,
		}, later)
		require.NoError(t, err)
		assert.Equal(t, JobStatusQueued, next.Status)
		assert.Equal(t, created, next.UpdatedAt)
	})

	t.Run("terminal rejects further transitions", func(t *testing.T) {
		done, err := ApplyTransition(queued(), &TransitionRequest{
			MessageID: "m1", To: JobStatusSuccess, JobType: JobTypePropertyScrape,
			Result: json.RawMessage(`{"ok":true}`),
		}, later)
		require.NoError(t, err)
		require.NotNil(t, done.CompletedAt)

		_, err = ApplyTransition(done, &TransitionRequest{
			MessageID: "m1", To: JobStatusFailed, JobType: JobTypePropertyScrape,
		}, later.Add(time.Second))
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("started_at is preserved on completion", func(t *testing.T) {
		processing, err := ApplyTransition(queued(), &TransitionRequest{
			MessageID: "m1", To: JobStatusProcessing, JobType: JobTypePropertyScrape,
		}, later)
		require.NoError(t, err)

		end := later.Add(3 * time.Second)
		done, err := ApplyTransition(processing, &TransitionRequest{
			MessageID: "m1", To: JobStatusSuccess, JobType: JobTypePropertyScrape,
		}, end)
		require.NoError(t, err)
		require.NotNil(t, done.StartedAt)
		assert.Equal(t, later, *done.StartedAt)
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, end, *done.CompletedAt)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		existing := queued()
		_, err := ApplyTransition(existing, &TransitionRequest{
			MessageID: "m1", To: JobStatusProcessing, JobType: JobTypePropertyScrape,
		}, later)
		require.NoError(t, err)
		assert.Equal(t, JobStatusQueued, existing.Status)
		assert.Nil(t, existing.StartedAt)
	})
}
