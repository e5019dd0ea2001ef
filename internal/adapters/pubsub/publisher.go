// Package pubsub adapts Google Cloud Pub/Sub to the dispatch and worker ports.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// PublisherOptions groups dependencies for Publisher.
type PublisherOptions struct {
	Topic  *pubsub.Topic // Required: publish target
	Logger *slog.Logger  // Optional: structured logger
}

// Publisher dispatches scrape messages to a Pub/Sub topic. The server-assigned
// message id it returns is the correlation key for the job's trace.
type Publisher struct {
	topic  *pubsub.Topic
	logger *slog.Logger
}

// NewPublisher constructs a new Publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Topic == nil {
		return nil, errors.New("Topic is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		topic:  opts.Topic,
		logger: logger.With("component", "pubsub_publisher"),
	}, nil
}

// PublishScrape encodes and publishes one scrape message, blocking until the
// broker acknowledges it, and returns the assigned message id.
func (p *Publisher) PublishScrape(ctx context.Context, msg *model.ScrapeMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode scrape message: %w", err)
	}

	res := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	messageID, err := res.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to topic %s: %w", p.topic.ID(), err)
	}

	p.logger.DebugContext(ctx, "message published",
		"message_id", messageID, "topic", p.topic.ID())
	return messageID, nil
}
