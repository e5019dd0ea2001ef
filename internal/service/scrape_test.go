package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScrapeService(t *testing.T) (*ScrapeService, *fakePublisher, *TraceService) {
	t.Helper()
	hook, traces := newDispatchHook(t)
	pub := &fakePublisher{}
	svc, err := NewScrapeService(ScrapeServiceOptions{Publisher: pub, Hook: hook})
	require.NoError(t, err)
	return svc, pub, traces
}

func TestScrapeService_DispatchScrape(t *testing.T) {
	svc, pub, traces := newScrapeService(t)
	ctx := context.Background()

	messageID, err := svc.DispatchScrape(ctx, "https://suumo.jp/ms/chuko/tokyo/nc_1", "U1", false)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", messageID)
	require.Len(t, pub.published, 1)
	assert.False(t, pub.published[0].CheckOnly)

	// The queued trace exists immediately after dispatch
	trace, err := traces.GetStatus(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, trace.Status)
	assert.Equal(t, model.JobTypePropertyScrape, trace.JobType)
}

func TestScrapeService_DispatchScrape_Invalid(t *testing.T) {
	svc, pub, _ := newScrapeService(t)
	ctx := context.Background()

	_, err := svc.DispatchScrape(ctx, "https://example.com/nope", "U1", false)
	require.Error(t, err)

	_, err = svc.DispatchScrape(ctx, "https://suumo.jp/ms/chuko/tokyo/nc_1", "bad", false)
	require.Error(t, err)

	assert.Empty(t, pub.published)
}

func TestScrapeService_DispatchBatchCheck(t *testing.T) {
	svc, pub, traces := newScrapeService(t)
	ctx := context.Background()

	messageID, err := svc.DispatchBatchCheck(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.True(t, pub.published[0].CheckOnly)
	assert.Empty(t, pub.published[0].URL)

	trace, err := traces.GetStatus(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, model.JobTypeBatchCheck, trace.JobType)
}

func TestScrapeService_PublishFailure(t *testing.T) {
	svc, pub, traces := newScrapeService(t)
	pub.failWith = errors.New("broker unavailable")
	ctx := context.Background()

	_, err := svc.DispatchScrape(ctx, "https://suumo.jp/ms/chuko/tokyo/nc_1", "U1", false)
	require.Error(t, err)

	// No orphan trace without a published message
	_, err = traces.GetStatus(ctx, "msg-1")
	require.Error(t, err)
}
