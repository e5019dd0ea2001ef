package config

import "strings"

// MetricsConfig controls StatsD metric emission.
type MetricsConfig struct {
	// Enabled turns metric emission on.
	Enabled bool `env:"ENABLED" envDefault:"false"`

	// StatsdAddress is the UDP host:port of the StatsD endpoint.
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize applies guardrails to metrics configuration values.
func (m *MetricsConfig) Sanitize() {
	m.StatsdAddress = strings.TrimSpace(m.StatsdAddress)
	if m.StatsdAddress == "" {
		m.Enabled = false
	}
}

// IsEnabled returns true when metrics should be emitted after sanitisation.
func (m *MetricsConfig) IsEnabled() bool {
	return m.Enabled && m.StatsdAddress != ""
}
