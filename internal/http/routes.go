package httpx

import (
	"log/slog"
	"net/http"

	lineadapter "github.com/mansionwatch/mansion-watch/internal/adapters/line"
	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Traces    *service.TraceService
	Scrapes   *service.ScrapeService
	Watchlist *service.WatchlistService

	// Optional: LINE webhook integration. When nil the webhook route is
	// not registered.
	Line  *lineadapter.Client
	Users core.UserRepository

	Logger *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Traces}
	scrapeHandlers := &ScrapeHandlers{Svc: services.Scrapes}
	watchlistHandlers := &WatchlistHandlers{Svc: services.Watchlist}

	mux.HandleFunc("GET /api/jobs/status/{message_id}", jobHandlers.GetStatus)
	mux.HandleFunc("GET /api/jobs/user/{line_user_id}", jobHandlers.ListUserJobs)
	mux.HandleFunc("POST /api/scrape", scrapeHandlers.Dispatch)
	mux.HandleFunc("GET /api/watchlist/{line_user_id}", watchlistHandlers.ListProperties)

	if services.Line != nil && services.Users != nil {
		webhookHandlers := &WebhookHandlers{
			Line:    services.Line,
			Users:   services.Users,
			Scrapes: services.Scrapes,
			Logger:  services.Logger,
		}
		mux.HandleFunc("POST /webhook", webhookHandlers.HandleWebhook)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
