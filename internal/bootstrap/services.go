package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/mansionwatch/mansion-watch/config"
	lineadapter "github.com/mansionwatch/mansion-watch/internal/adapters/line"
	pubsubadapter "github.com/mansionwatch/mansion-watch/internal/adapters/pubsub"
	reaperadapter "github.com/mansionwatch/mansion-watch/internal/adapters/reaper"
	scheduleradapter "github.com/mansionwatch/mansion-watch/internal/adapters/scheduler"
	"github.com/mansionwatch/mansion-watch/internal/core"
	"github.com/mansionwatch/mansion-watch/internal/data"
	httpx "github.com/mansionwatch/mansion-watch/internal/http"
	"github.com/mansionwatch/mansion-watch/internal/migrate"
	"github.com/mansionwatch/mansion-watch/internal/observability/statsd"
	"github.com/mansionwatch/mansion-watch/internal/scraper"
	"github.com/mansionwatch/mansion-watch/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Traces    *service.TraceService
	Hook      *service.DispatchHook
	Scrapes   *service.ScrapeService
	Watchlist *service.WatchlistService
	Processor *service.ProcessorService
	Users     core.UserRepository
	Line      *lineadapter.Client
	Metrics   *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config       *config.AppConfig
	DB           *sql.DB
	RedisClient  redis.UniversalClient
	PubSubClient *gcppubsub.Client
	Logger       *slog.Logger
}

// RunMigrations applies the embedded database migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger != nil {
		logger.InfoContext(ctx, "running database migrations")
	}
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewServices wires repositories and services from shared infrastructure.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	traceRepo := data.NewTraceRepo(deps.DB, data.TraceRepoConfig{Logger: logger})
	propertyRepo := data.NewPropertyRepo(deps.DB, data.PropertyRepoConfig{Logger: logger})
	watchRepo := data.NewWatchRepo(deps.DB, data.WatchRepoConfig{Logger: logger})
	userRepo := data.NewUserRepo(deps.DB, data.UserRepoConfig{Logger: logger})

	traces, err := service.NewTraceService(service.TraceServiceOptions{
		Repo:   traceRepo,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire trace service: %w", err)
	}

	var metricsSink *statsd.Client
	if deps.Config.Metrics.IsEnabled() {
		metricsSink, err = statsd.NewClient(statsd.ClientOptions{
			Address: deps.Config.Metrics.StatsdAddress,
			Prefix:  "mansionwatch",
			Logger:  logger,
		})
		if err != nil {
			// Metrics are best-effort: a dead StatsD endpoint must not
			// block startup.
			logger.Warn("statsd client unavailable, metrics disabled", "error", err)
			metricsSink = nil
		}
	}

	hookOpts := service.DispatchHookOptions{
		Traces: traces,
		Logger: logger,
	}
	if metricsSink != nil {
		hookOpts.Metrics = metricsSink
	}
	hook, err := service.NewDispatchHook(hookOpts)
	if err != nil {
		return nil, fmt.Errorf("wire dispatch hook: %w", err)
	}

	watchlist, err := service.NewWatchlistService(service.WatchlistServiceOptions{
		Properties: propertyRepo,
		Watches:    watchRepo,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire watchlist service: %w", err)
	}

	var lineClient *lineadapter.Client
	if deps.Config.Line.Enabled() {
		lineClient, err = lineadapter.NewClient(deps.Config.Line, logger)
		if err != nil {
			return nil, fmt.Errorf("wire line client: %w", err)
		}
	} else {
		logger.Warn("line credentials missing, webhook and notifications disabled")
	}

	container := &ServiceContainer{
		Traces:    traces,
		Hook:      hook,
		Watchlist: watchlist,
		Users:     userRepo,
		Line:      lineClient,
		Metrics:   metricsSink,
	}

	if deps.PubSubClient != nil {
		publisher, err := pubsubadapter.NewPublisher(pubsubadapter.PublisherOptions{
			Topic:  deps.PubSubClient.Topic(deps.Config.PubSub.TopicID),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire publisher: %w", err)
		}

		container.Scrapes, err = service.NewScrapeService(service.ScrapeServiceOptions{
			Publisher: publisher,
			Hook:      hook,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire scrape service: %w", err)
		}
	}

	var dedupe core.DedupeRepository
	if deps.RedisClient != nil {
		dedupe = data.NewRedisDedupeRepo(deps.RedisClient, data.RedisDedupeRepoConfig{Logger: logger})
	}

	var notifier core.Notifier
	if lineClient != nil {
		notifier = lineClient
	}

	fetcher := scraper.NewSuumoFetcher(scraper.SuumoFetcherOptions{
		UserAgent: deps.Config.Scraper.UserAgent,
		Timeout:   deps.Config.Scraper.Timeout,
		Logger:    logger,
	})

	container.Processor, err = service.NewProcessorService(service.ProcessorServiceOptions{
		Fetcher:   fetcher,
		Watchlist: watchlist,
		Hook:      hook,
		Dedupe:    dedupe,
		Notifier:  notifier,
		DedupeTTL: deps.Config.Worker.DedupeTTL,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire processor service: %w", err)
	}

	return container, nil
}

// ServiceOrchestrationConfig groups everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config       *config.AppConfig
	Services     *ServiceContainer
	DB           *sql.DB
	PubSubClient *gcppubsub.Client
	Logger       *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or a service fails. Returns nil on clean shutdown.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		if err := startHTTPServer(groupCtx, group, cfg, logger); err != nil {
			return err
		}
	}

	if enabled[config.ServiceModeWorker] {
		if err := startWorker(groupCtx, group, cfg, logger); err != nil {
			return err
		}
	}

	if enabled[config.ServiceModeScheduler] {
		runner, err := scheduleradapter.NewRunner(scheduleradapter.RunnerOptions{
			Watchlist: cfg.Services.Watchlist,
			Scrapes:   cfg.Services.Scrapes,
			Config:    cfg.Config.Scheduler,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("wire scheduler runner: %w", err)
		}
		group.Go(func() error { return runner.Run(groupCtx) })
	}

	if enabled[config.ServiceModeReaper] {
		runner, err := reaperadapter.NewRunner(reaperadapter.RunnerOptions{
			DB:     cfg.DB,
			Config: cfg.Config.Reaper,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("wire reaper runner: %w", err)
		}
		group.Go(func() error { return runner.Run(groupCtx) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("all services stopped")
	return nil
}

func startHTTPServer(ctx context.Context, group *errgroup.Group, cfg *ServiceOrchestrationConfig, logger *slog.Logger) error {
	if cfg.Services.Scrapes == nil {
		return errors.New("http service requires a pub/sub publisher")
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Traces:    cfg.Services.Traces,
		Scrapes:   cfg.Services.Scrapes,
		Watchlist: cfg.Services.Watchlist,
		Line:      cfg.Services.Line,
		Users:     cfg.Services.Users,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.Config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Config.HTTP.ReadHeaderTimeout,
	}

	group.Go(func() error {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Config.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	return nil
}

func startWorker(ctx context.Context, group *errgroup.Group, cfg *ServiceOrchestrationConfig, logger *slog.Logger) error {
	if cfg.PubSubClient == nil {
		return errors.New("worker service requires a pub/sub client")
	}

	subscriber, err := pubsubadapter.NewSubscriber(pubsubadapter.SubscriberOptions{
		Subscription: cfg.PubSubClient.Subscription(cfg.Config.PubSub.Subscription),
		Handler:      cfg.Services.Processor.Process,
		Concurrency:  cfg.Config.Worker.Concurrency,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("wire subscriber: %w", err)
	}

	group.Go(func() error { return subscriber.Run(ctx) })
	return nil
}
