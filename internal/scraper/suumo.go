// Package scraper fetches and parses SUUMO listing pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// ErrListingGone marks a listing page that no longer exists. Callers treat it
// as a terminal not-found outcome rather than a retryable failure.
var ErrListingGone = errors.New("listing no longer exists")

// SuumoFetcherOptions groups configuration for SuumoFetcher.
type SuumoFetcherOptions struct {
	UserAgent string        // Optional: request user agent
	Timeout   time.Duration // Optional: per-fetch timeout, defaults to 30s
	Client    *http.Client  // Optional: override HTTP client (tests)
	Logger    *slog.Logger  // Optional: structured logger
}

// SuumoFetcher retrieves the current state of SUUMO listing pages.
type SuumoFetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewSuumoFetcher constructs a new SuumoFetcher.
func NewSuumoFetcher(opts SuumoFetcherOptions) *SuumoFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SuumoFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "suumo_fetcher"),
	}
}

// Fetch downloads and parses one listing page. A 404 response, or a page
// that renders SUUMO's listing-ended notice, returns ErrListingGone.
func (f *SuumoFetcher) Fetch(ctx context.Context, url string) (*model.Listing, error) {
	if err := model.ValidateListingURL(url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Language", "ja")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrListingGone
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("listing page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	if listingEnded(doc) {
		return nil, ErrListingGone
	}

	listing := parseListing(doc)
	listing.URL = url
	if listing.Name == "" {
		return nil, errors.New("listing page has no property name")
	}

	f.logger.DebugContext(ctx, "listing scraped",
		"url", url, "name", listing.Name, "images", len(listing.ImageURLs))
	return listing, nil
}

// listingEnded detects the notice SUUMO renders in place of an expired
// listing while still answering 200.
func listingEnded(doc *goquery.Document) bool {
	ended := false
	doc.Find(".ui-notification, .error_pop_list, h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, "掲載期間が終了") ||
			strings.Contains(text, "掲載が終了") ||
			strings.Contains(text, "ページが見つかりません") {
			ended = true
			return false
		}
		return true
	})
	return ended
}

func parseListing(doc *goquery.Document) *model.Listing {
	listing := &model.Listing{IsActive: true}

	listing.Name = strings.TrimSpace(doc.Find("h1.section_h1-header-title").First().Text())
	if listing.Name == "" {
		listing.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	listing.LargePropertyDescription = strings.TrimSpace(
		doc.Find(".property_view_note-large").First().Text())
	listing.SmallPropertyDescription = strings.TrimSpace(
		doc.Find(".property_view_note-list").First().Text())

	seen := make(map[string]bool)
	doc.Find(".js-lightbox img, .lazyload").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("data-src")
		if !ok {
			src, ok = s.Attr("src")
		}
		if !ok || src == "" || seen[src] {
			return
		}
		if !strings.HasPrefix(src, "http") {
			return
		}
		seen[src] = true
		listing.ImageURLs = append(listing.ImageURLs, src)
	})

	return listing
}
