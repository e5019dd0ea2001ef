package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, worker, scheduler, and reaper configuration
//   - integrations.go: LINE and Pub/Sub configuration
//   - observability.go: StatsD metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, .env loading).
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel sets the minimum slog level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	// Valid values: http, worker, scheduler, reaper
	Services string `env:"SERVICES" envDefault:"http"`

	// Worker configuration
	Worker WorkerConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// LINE messaging configuration
	Line LineConfig `envPrefix:"LINE_"`

	// Pub/Sub configuration
	PubSub PubSubConfig `envPrefix:"PUBSUB_"`

	// Scraper configuration
	Scraper ScraperConfig `envPrefix:"SCRAPER_"`

	// Metrics configuration
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Worker.Sanitize()
	c.Scheduler.Sanitize()
	c.Reaper.Sanitize()
	c.Scraper.Sanitize()
	c.Metrics.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks ENV as a fallback for the DEV flag.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		envName := strings.ToLower(os.Getenv("ENV"))
		c.IsDev = envName == "development" || envName == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}
