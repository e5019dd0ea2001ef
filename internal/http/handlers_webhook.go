package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	lineadapter "github.com/mansionwatch/mansion-watch/internal/adapters/line"
	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// WebhookHandlers processes LINE platform webhook callbacks.
type WebhookHandlers struct {
	Line    *lineadapter.Client
	Users   core.UserRepository
	Scrapes *service.ScrapeService
	Logger  *slog.Logger
}

// HandleWebhook handles POST /webhook. Follow events register the user;
// text messages containing a supported listing URL dispatch a scrape job.
// LINE retries non-200 responses, so event-level failures are logged and the
// callback still acknowledges.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events, err := h.Line.ParseWebhook(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_webhook", Err: err})
		return
	}

	ctx := r.Context()
	for _, event := range events {
		if event.Source == nil || event.Source.UserID == "" {
			continue
		}
		userID := event.Source.UserID

		switch event.Type {
		case linebot.EventTypeFollow:
			if _, created, err := h.Users.EnsureUser(ctx, userID); err != nil {
				logger.WarnContext(ctx, "failed to register follower",
					"line_user_id", userID, "error", err)
			} else if created {
				logger.InfoContext(ctx, "follower registered", "line_user_id", userID)
			}

		case linebot.EventTypeMessage:
			h.handleMessage(r, event, userID)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandlers) handleMessage(r *http.Request, event *linebot.Event, userID string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	text, ok := event.Message.(*linebot.TextMessage)
	if !ok {
		return
	}

	url := firstListingURL(text.Text)
	if url == "" {
		return
	}

	ctx := r.Context()
	messageID, err := h.Scrapes.DispatchScrape(ctx, url, userID, false)
	if err != nil {
		logger.WarnContext(ctx, "failed to dispatch scrape from webhook",
			"line_user_id", userID, "url", url, "error", err)
		return
	}
	logger.InfoContext(ctx, "scrape dispatched from webhook",
		"line_user_id", userID, "message_id", messageID)
}

// firstListingURL extracts the first supported listing URL from message text.
func firstListingURL(text string) string {
	for _, field := range strings.Fields(text) {
		if model.ValidateListingURL(field) == nil {
			return field
		}
	}
	return ""
}
