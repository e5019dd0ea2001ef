// Package metrics standardises the metric shapes emitted by services.
package metrics

import (
	"time"

	"github.com/mansionwatch/mansion-watch/internal/observability/statsd"
)

// Result values for the transition result tag.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// TransitionMetric describes one job trace transition attempt.
type TransitionMetric struct {
	JobType  string
	Status   string
	Result   string
	Duration time.Duration
}

// EmitTransition emits the trace transition counter, plus a queue-to-done
// timing when the transition closed out a job. A nil sink is a no-op so
// callers can leave metrics unconfigured.
func EmitTransition(sink statsd.Sink, in TransitionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type": in.JobType,
		"status":   in.Status,
		"result":   in.Result,
	}

	sink.Count("trace.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("trace.duration", in.Duration, map[string]string{
			"job_type": in.JobType,
			"status":   in.Status,
			"result":   in.Result,
		})
	}
}
