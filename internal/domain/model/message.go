package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ScrapeMessage is the wire format of one dispatched job message. A message
// with a URL is a single-property scrape; a message without one must be
// check_only and re-verifies every watched property of the user.
type ScrapeMessage struct {
	Timestamp  time.Time `json:"timestamp"`
	URL        string    `json:"url,omitempty"`
	LineUserID string    `json:"line_user_id"`
	CheckOnly  bool      `json:"check_only"`
}

// JobType derives the job classification from the message shape.
func (m *ScrapeMessage) JobType() JobType {
	if m.URL == "" {
		return JobTypeBatchCheck
	}
	return JobTypePropertyScrape
}

// Validate rejects messages the worker cannot act on.
func (m *ScrapeMessage) Validate() error {
	if m.LineUserID == "" {
		return errors.New("line_user_id is required")
	}
	if err := ValidateLineUserID(m.LineUserID); err != nil {
		return err
	}
	if m.URL == "" && !m.CheckOnly {
		return errors.New("url is required unless check_only is set")
	}
	if m.URL != "" {
		if err := ValidateListingURL(m.URL); err != nil {
			return err
		}
	}
	return nil
}

// DecodeScrapeMessage parses and validates a raw message payload.
func DecodeScrapeMessage(data []byte) (*ScrapeMessage, error) {
	var m ScrapeMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode scrape message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scrape message: %w", err)
	}
	return &m, nil
}
