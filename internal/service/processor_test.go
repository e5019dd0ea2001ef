package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFixture struct {
	processor *ProcessorService
	traces    *TraceService
	fetcher   *fakeFetcher
	props     *fakePropertyRepo
	watches   *fakeWatchRepo
	notifier  *fakeNotifier
	dedupe    *fakeDedupe
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	hook, traces := newDispatchHook(t)

	props := newFakePropertyRepo()
	watches := newFakeWatchRepo(props)
	watchlist, err := NewWatchlistService(WatchlistServiceOptions{
		Properties: props,
		Watches:    watches,
	})
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	notifier := &fakeNotifier{}
	dedupe := newFakeDedupe()

	processor, err := NewProcessorService(ProcessorServiceOptions{
		Fetcher:   fetcher,
		Watchlist: watchlist,
		Hook:      hook,
		Dedupe:    dedupe,
		Notifier:  notifier,
	})
	require.NoError(t, err)

	return &processorFixture{
		processor: processor,
		traces:    traces,
		fetcher:   fetcher,
		props:     props,
		watches:   watches,
		notifier:  notifier,
		dedupe:    dedupe,
	}
}

func scrapePayload(t *testing.T, url string) []byte {
	t.Helper()
	data, err := json.Marshal(&model.ScrapeMessage{URL: url, LineUserID: "U1"})
	require.NoError(t, err)
	return data
}

const listingURL = "https://suumo.jp/ms/chuko/tokyo/sc_104/nc_1"

func TestProcessor_PropertyScrapeSuccess(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.fetcher.listings[listingURL] = &model.Listing{
		Name: "パークハウス中野", URL: listingURL, IsActive: true,
	}

	err := f.processor.Process(ctx, "m1", scrapePayload(t, listingURL))
	require.NoError(t, err)

	trace, err := f.traces.GetStatus(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, trace.Status)
	require.NotNil(t, trace.StartedAt)
	require.NotNil(t, trace.CompletedAt)

	// The property landed on the user's watchlist
	prop, err := f.props.GetByURL(ctx, listingURL)
	require.NoError(t, err)
	assert.Contains(t, f.watches.links["U1"], prop.ID)

	// The user was told about it
	require.Len(t, f.notifier.pushed, 1)
}

func TestProcessor_PropertyScrapeGone(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	// Listing was stored once, then the page disappeared
	_, err := f.props.UpsertByURL(ctx, &model.Listing{Name: "old", URL: listingURL, IsActive: true})
	require.NoError(t, err)

	err = f.processor.Process(ctx, "m1", scrapePayload(t, listingURL))
	require.NoError(t, err)

	trace, err := f.traces.GetStatus(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusNotFound, trace.Status)
	assert.Nil(t, trace.Error)

	prop, err := f.props.GetByURL(ctx, listingURL)
	require.NoError(t, err)
	assert.False(t, prop.IsActive)
}

func TestProcessor_FetchErrorRecordsFailure(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.fetcher.failWith = context.DeadlineExceeded

	err := f.processor.Process(ctx, "m1", scrapePayload(t, listingURL))
	require.NoError(t, err)

	trace, err := f.traces.GetStatus(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, trace.Status)
	require.NotNil(t, trace.Error)
}

func TestProcessor_MalformedPayloadIsDropped(t *testing.T) {
	f := newProcessorFixture(t)

	err := f.processor.Process(context.Background(), "m1", []byte("not json"))
	require.NoError(t, err)

	// No trace should exist for a message that never decoded
	_, err = f.traces.GetStatus(context.Background(), "m1")
	require.Error(t, err)
}

func TestProcessor_DuplicateDeliveryIsDropped(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.fetcher.listings[listingURL] = &model.Listing{Name: "test", URL: listingURL, IsActive: true}

	require.NoError(t, f.processor.Process(ctx, "m1", scrapePayload(t, listingURL)))
	require.Len(t, f.notifier.pushed, 1)

	// Redelivery of the same message id is a no-op
	require.NoError(t, f.processor.Process(ctx, "m1", scrapePayload(t, listingURL)))
	assert.Len(t, f.notifier.pushed, 1)
}

func TestProcessor_BatchCheck(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	activeURL := "https://suumo.jp/ms/chuko/tokyo/sc_104/nc_10"
	goneURL := "https://suumo.jp/ms/chuko/tokyo/sc_104/nc_11"

	for _, url := range []string{activeURL, goneURL} {
		prop, err := f.props.UpsertByURL(ctx, &model.Listing{Name: "物件 " + url, URL: url, IsActive: true})
		require.NoError(t, err)
		_, err = f.watches.Link(ctx, "U1", prop.ID)
		require.NoError(t, err)
	}
	f.fetcher.listings[activeURL] = &model.Listing{Name: "物件", URL: activeURL, IsActive: true}

	payload, err := json.Marshal(&model.ScrapeMessage{LineUserID: "U1", CheckOnly: true})
	require.NoError(t, err)
	require.NoError(t, f.processor.Process(ctx, "batch-1", payload))

	trace, err := f.traces.GetStatus(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, trace.Status)
	assert.Equal(t, model.JobTypeBatchCheck, trace.JobType)

	var result batchCheckResult
	require.NoError(t, json.Unmarshal(trace.Result, &result))
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Active)
	assert.Equal(t, 1, result.Delisted)
	assert.Zero(t, result.Errored)

	// Delisted property was deactivated and the user notified
	prop, err := f.props.GetByURL(ctx, goneURL)
	require.NoError(t, err)
	assert.False(t, prop.IsActive)
	require.Len(t, f.notifier.pushed, 1)
}
