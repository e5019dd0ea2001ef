package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/data"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/observability/statsd"
	"github.com/mansionwatch/mansion-watch/internal/scraper"
)

// fakePublisher records published messages and assigns sequential ids.
type fakePublisher struct {
	mu        sync.Mutex
	published []*model.ScrapeMessage
	failWith  error
}

func (p *fakePublisher) PublishScrape(_ context.Context, msg *model.ScrapeMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.published = append(p.published, msg)
	return fmt.Sprintf("msg-%d", len(p.published)), nil
}

// fakePropertyRepo stores properties keyed by URL.
type fakePropertyRepo struct {
	mu    sync.Mutex
	byURL map[string]*model.Property
	next  int
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{byURL: make(map[string]*model.Property)}
}

func (r *fakePropertyRepo) UpsertByURL(_ context.Context, listing *model.Listing) (*model.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, ok := r.byURL[listing.URL]
	if !ok {
		r.next++
		prop = &model.Property{
			ID:        fmt.Sprintf("prop-%d", r.next),
			URL:       listing.URL,
			CreatedAt: time.Now(),
		}
		r.byURL[listing.URL] = prop
	}
	prop.Name = listing.Name
	prop.IsActive = listing.IsActive
	prop.ImageURLs = listing.ImageURLs
	prop.UpdatedAt = time.Now()
	return prop, nil
}

func (r *fakePropertyRepo) GetByURL(_ context.Context, url string) (*model.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, ok := r.byURL[url]
	if !ok {
		return nil, data.ErrPropertyNotFound
	}
	return prop, nil
}

func (r *fakePropertyRepo) Deactivate(_ context.Context, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, ok := r.byURL[url]
	if !ok {
		return false, nil
	}
	prop.IsActive = false
	return true, nil
}

// fakeWatchRepo stores watch links keyed by user and property id.
type fakeWatchRepo struct {
	mu         sync.Mutex
	links      map[string][]string // lineUserID -> propertyIDs
	properties *fakePropertyRepo
	checked    map[string]bool // "user/prop" -> last check outcome
}

func newFakeWatchRepo(props *fakePropertyRepo) *fakeWatchRepo {
	return &fakeWatchRepo{
		links:      make(map[string][]string),
		properties: props,
		checked:    make(map[string]bool),
	}
}

func (r *fakeWatchRepo) Link(_ context.Context, lineUserID, propertyID string) (*model.UserProperty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.links[lineUserID] {
		if id == propertyID {
			return &model.UserProperty{LineUserID: lineUserID, PropertyID: propertyID}, nil
		}
	}
	r.links[lineUserID] = append(r.links[lineUserID], propertyID)
	return &model.UserProperty{LineUserID: lineUserID, PropertyID: propertyID}, nil
}

func (r *fakeWatchRepo) ListUserProperties(_ context.Context, lineUserID string) ([]*model.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var props []*model.Property
	for _, id := range r.links[lineUserID] {
		for _, prop := range r.properties.byURL {
			if prop.ID == id {
				props = append(props, prop)
			}
		}
	}
	return props, nil
}

func (r *fakeWatchRepo) DistinctUserIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id := range r.links {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeWatchRepo) TouchChecked(_ context.Context, lineUserID, propertyID string, succeeded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checked[lineUserID+"/"+propertyID] = succeeded
	return nil
}

// fakeFetcher serves canned listings by URL; missing URLs are gone listings.
type fakeFetcher struct {
	mu       sync.Mutex
	listings map[string]*model.Listing
	failWith error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{listings: make(map[string]*model.Listing)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	listing, ok := f.listings[url]
	if !ok {
		return nil, scraper.ErrListingGone
	}
	return listing, nil
}

// fakeNotifier records pushed messages.
type fakeNotifier struct {
	mu     sync.Mutex
	pushed []string
}

func (n *fakeNotifier) PushText(_ context.Context, lineUserID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, lineUserID+": "+text)
	return nil
}

// fakeDedupe remembers claimed message ids.
type fakeDedupe struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newFakeDedupe() *fakeDedupe {
	return &fakeDedupe{claimed: make(map[string]bool)}
}

func (d *fakeDedupe) MarkProcessed(_ context.Context, messageID string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed[messageID] {
		return false, nil
	}
	d.claimed[messageID] = true
	return true, nil
}

// fakeSink records emitted metrics, keyed by metric name.
type fakeSink struct {
	mu      sync.Mutex
	counts  []sinkEmission
	timings []sinkEmission
}

type sinkEmission struct {
	name     string
	tags     map[string]string
	duration time.Duration
}

func (s *fakeSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, sinkEmission{name: name, tags: tags})
}

func (s *fakeSink) Gauge(string, float64, map[string]string) {}

func (s *fakeSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings = append(s.timings, sinkEmission{name: name, tags: tags, duration: value})
}

var _ core.Publisher = (*fakePublisher)(nil)
var _ core.PropertyRepository = (*fakePropertyRepo)(nil)
var _ core.WatchRepository = (*fakeWatchRepo)(nil)
var _ core.ListingFetcher = (*fakeFetcher)(nil)
var _ core.Notifier = (*fakeNotifier)(nil)
var _ core.DedupeRepository = (*fakeDedupe)(nil)
var _ statsd.Sink = (*fakeSink)(nil)
