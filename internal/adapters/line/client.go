// Package line adapts the LINE Messaging API to the notifier and webhook ports.
package line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/mansionwatch/mansion-watch/config"
)

// ErrNotConfigured is returned when LINE credentials were not provided.
var ErrNotConfigured = errors.New("line messaging is not configured")

// Client wraps the LINE bot SDK for push notifications and webhook parsing.
type Client struct {
	bot    *linebot.Client
	logger *slog.Logger
}

// NewClient constructs a LINE client from channel credentials. Returns
// ErrNotConfigured when either credential is missing so callers can run
// without the integration.
func NewClient(cfg config.LineConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	bot, err := linebot.New(cfg.ChannelSecret, cfg.ChannelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("create line bot client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		bot:    bot,
		logger: logger.With("component", "line_client"),
	}, nil
}

// PushText sends a plain text message to one user.
func (c *Client) PushText(ctx context.Context, lineUserID, text string) error {
	_, err := c.bot.PushMessage(lineUserID, linebot.NewTextMessage(text)).WithContext(ctx).Do()
	if err != nil {
		return fmt.Errorf("push line message: %w", err)
	}
	c.logger.DebugContext(ctx, "line message pushed", "line_user_id", lineUserID)
	return nil
}

// ParseWebhook validates the request signature and returns the events.
func (c *Client) ParseWebhook(r *http.Request) ([]*linebot.Event, error) {
	events, err := c.bot.ParseRequest(r)
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			return nil, fmt.Errorf("invalid webhook signature: %w", err)
		}
		return nil, fmt.Errorf("parse webhook request: %w", err)
	}
	return events, nil
}
