package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// MessageHandler processes one delivered message. A non-nil error nacks the
// message for redelivery; nil acks it.
type MessageHandler func(ctx context.Context, messageID string, payload []byte) error

// SubscriberOptions groups dependencies for Subscriber.
type SubscriberOptions struct {
	Subscription *pubsub.Subscription // Required: subscription to consume
	Handler      MessageHandler       // Required: message handler
	Concurrency  int                  // Optional: max outstanding messages, defaults to 4
	Logger       *slog.Logger         // Optional: structured logger
}

// Subscriber pulls scrape messages from a Pub/Sub subscription and hands them
// to the worker pipeline.
type Subscriber struct {
	sub     *pubsub.Subscription
	handler MessageHandler
	logger  *slog.Logger
}

// NewSubscriber constructs a new Subscriber.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Subscription == nil {
		return nil, errors.New("Subscription is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("Handler is required")
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	opts.Subscription.ReceiveSettings.MaxOutstandingMessages = concurrency

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Subscriber{
		sub:     opts.Subscription,
		handler: opts.Handler,
		logger:  logger.With("component", "pubsub_subscriber"),
	}, nil
}

// Run consumes the subscription until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting subscriber", "subscription", s.sub.ID())

	err := s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if handleErr := s.handler(ctx, msg.ID, msg.Data); handleErr != nil {
			s.logger.WarnContext(ctx, "message handling failed, nacking",
				"message_id", msg.ID, "error", handleErr)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive from subscription %s: %w", s.sub.ID(), err)
	}

	s.logger.InfoContext(ctx, "subscriber stopped", "subscription", s.sub.ID())
	return nil
}
