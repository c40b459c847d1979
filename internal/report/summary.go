// Package report renders the end-of-run summary as text, JSON, YAML or HTML
// and shows live progress while a run is in flight.
package report

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/scenario"
	"github.com/hhplus/orderstorm/internal/threshold"
)

// Summary is everything known about a finished run.
type Summary struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	Scenario    string            `json:"scenario" yaml:"scenario"`
	BaseURL     string            `json:"base_url" yaml:"base_url"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	Duration    time.Duration     `json:"duration_ns" yaml:"duration_ns"`
	MaxVUs      int               `json:"max_vus" yaml:"max_vus"`
	Iterations  int64             `json:"iterations" yaml:"iterations"`
	Interrupted int64             `json:"interrupted_iterations" yaml:"interrupted_iterations"`
	Aborted     bool              `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Outcomes    []OutcomeCount    `json:"outcomes" yaml:"outcomes"`
	Domain      []scenario.Line   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Metrics     metrics.Snapshot  `json:"metrics" yaml:"metrics"`
	Thresholds  threshold.Verdict `json:"thresholds" yaml:"thresholds"`
	Passed      bool              `json:"passed" yaml:"passed"`
	// SuppressedLogs counts failure log lines dropped by rate limiting.
	SuppressedLogs int64 `json:"suppressed_logs,omitempty" yaml:"suppressed_logs,omitempty"`
}

// OutcomeCount is the number of requests that ended in one outcome.
type OutcomeCount struct {
	Outcome string  `json:"outcome" yaml:"outcome"`
	Count   int64   `json:"count" yaml:"count"`
	Share   float64 `json:"share" yaml:"share"`
}

// NewRunID returns a lexically sortable identifier for a run.
func NewRunID() string {
	return ulid.Make().String()
}

// OutcomeCounts reads the outcome counters from snap in classification order.
func OutcomeCounts(snap metrics.Snapshot) []OutcomeCount {
	total := snap.Value(classify.MetricRequests)
	out := make([]OutcomeCount, 0, len(classify.Outcomes))
	for _, o := range classify.Outcomes {
		n := snap.Value(o.Counter())
		oc := OutcomeCount{Outcome: o.String(), Count: int64(n)}
		if total > 0 {
			oc.Share = n / total
		}
		out = append(out, oc)
	}
	return out
}
