package config

import "time"

// LineConfig contains LINE Messaging API configuration.
type LineConfig struct {
	ChannelSecret      string `env:"CHANNEL_SECRET"`
	ChannelAccessToken string `env:"CHANNEL_ACCESS_TOKEN"`
}

// Enabled reports whether LINE credentials were provided. Without them the
// webhook endpoint rejects requests and notifications are skipped.
func (l LineConfig) Enabled() bool {
	return l.ChannelSecret != "" && l.ChannelAccessToken != ""
}

// PubSubConfig contains Google Cloud Pub/Sub configuration.
type PubSubConfig struct {
	ProjectID    string `env:"PROJECT_ID"    envDefault:"mansion-watch"`
	TopicID      string `env:"TOPIC_ID"      envDefault:"scrape-jobs"`
	Subscription string `env:"SUBSCRIPTION"  envDefault:"scrape-jobs-worker"`
}

// ScraperConfig contains listing scraper configuration.
type ScraperConfig struct {
	// UserAgent is sent on every listing page request.
	UserAgent string `env:"USER_AGENT" envDefault:"Mozilla/5.0 (compatible; MansionWatch/1.0)"`

	// Timeout bounds a single page fetch.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to scraper configuration values.
func (s *ScraperConfig) Sanitize() {
	if s.Timeout < time.Second {
		s.Timeout = time.Second
	}
}
