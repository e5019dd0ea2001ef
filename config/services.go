package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the scrape message worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeScheduler runs the batch check scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the trace reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeScheduler,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeScheduler, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, scheduler, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains scrape worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of messages processed in parallel.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// DedupeTTL is how long processed message ids are remembered.
	DedupeTTL time.Duration `env:"WORKER_DEDUPE_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.DedupeTTL < time.Minute {
		w.DedupeTTL = time.Minute
	}
}

// SchedulerConfig contains batch check scheduler configuration.
type SchedulerConfig struct {
	// Interval is how often a batch check round is dispatched.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"24h"`

	// StartImmediately dispatches one round on startup instead of
	// waiting for the first tick.
	StartImmediately bool `env:"SCHEDULER_START_IMMEDIATELY" envDefault:"false"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Interval < time.Minute {
		s.Interval = time.Minute
	}
}

// ReaperConfig contains trace reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// CreatedMaxAge bounds the life of any trace from creation, regardless
	// of status. Stuck queued or processing traces age out through this.
	CreatedMaxAge time.Duration `env:"TRACE_RETENTION_CREATED" envDefault:"168h"` // 7 days

	// CompletedMaxAge bounds completed traces from their completion time.
	CompletedMaxAge time.Duration `env:"TRACE_RETENTION_COMPLETED" envDefault:"72h"` // 3 days

	// BatchSize is the maximum number of rows to delete per window per tick.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.CreatedMaxAge < 1*time.Hour {
		r.CreatedMaxAge = 1 * time.Hour
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.CompletedMaxAge > r.CreatedMaxAge {
		r.CompletedMaxAge = r.CreatedMaxAge
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
