// Package engine wires a load test together: it builds the HTTP client,
// classifier, executor and stage runner for one run, drives the run and turns
// the final metric snapshot into a report.Summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/hhplus/orderstorm/internal/behavior"
	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/executor"
	"github.com/hhplus/orderstorm/internal/httpclient"
	"github.com/hhplus/orderstorm/internal/logging"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/report"
	"github.com/hhplus/orderstorm/internal/runner"
	"github.com/hhplus/orderstorm/internal/scenario"
	"github.com/hhplus/orderstorm/internal/threshold"
)

// MetricIterations counts completed iterations, as k6's iterations metric does.
const MetricIterations = "iterations"

const tracerName = "github.com/hhplus/orderstorm/internal/engine"

// ErrAlreadyStarted is returned when Run is called twice on one Engine.
var ErrAlreadyStarted = errors.New("engine: run already started")

// RunConfig is the frozen description of one run. Either Stages or VUs with
// Duration shape the load.
type RunConfig struct {
	Scenario     string
	BaseURL      string
	Stages       []runner.Stage
	VUs          int
	Duration     time.Duration
	Thresholds   []threshold.Threshold
	Timeout      time.Duration
	GracefulStop time.Duration
	Seed         uint64
	Headers      map[string]string
	NewProfile   func() behavior.Profile
	Classifier   classify.Config
	// Summarize, when set, derives scenario-specific report lines.
	Summarize func(metrics.Snapshot) []scenario.Line
	// LogErrors logs every request that was not acceptable, rate limited.
	LogErrors bool
}

// ConfigError reports a RunConfig that cannot start a run.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid run config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Engine) { e.transport = rt }
}

// WithLogger sets the logger for run events and failure logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer enables iteration spans and an instrumented transport. A nil
// provider leaves tracing off.
func WithTracer(tp trace.TracerProvider, propagate bool) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
		e.propagate = propagate
	}
}

// WithSink records into sink instead of a private one, so callers can watch
// the run live.
func WithSink(sink *metrics.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// Engine runs one load test.
type Engine struct {
	cfg            RunConfig
	maxVUs         int
	planned        time.Duration
	sink           *metrics.Sink
	logger         zerolog.Logger
	transport      http.RoundTripper
	tracerProvider trace.TracerProvider
	propagate      bool

	started atomic.Bool
	runner  atomic.Pointer[runner.Runner]
}

// New validates cfg and returns an Engine. cfg is copied, so later changes by
// the caller do not affect the run.
func New(cfg RunConfig, opts ...Option) (*Engine, error) {
	if cfg.NewProfile == nil {
		return nil, &ConfigError{Err: errors.New("behavior profile is required")}
	}
	maxVUs, planned, err := runner.Shape(cfg.Stages, cfg.VUs, cfg.Duration)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if cfg.GracefulStop < 0 {
		return nil, &ConfigError{Err: fmt.Errorf("graceful stop must be >= 0, got %s", cfg.GracefulStop)}
	}
	for _, t := range cfg.Thresholds {
		if t.Metric == "" {
			return nil, &ConfigError{Err: fmt.Errorf("threshold %q has no metric", t.Raw)}
		}
	}

	cfg.Stages = slices.Clone(cfg.Stages)
	cfg.Thresholds = slices.Clone(cfg.Thresholds)
	cfg.Headers = maps.Clone(cfg.Headers)
	cfg.Classifier.AllowedStatuses = slices.Clone(cfg.Classifier.AllowedStatuses)
	cfg.Classifier.Checks = slices.Clone(cfg.Classifier.Checks)

	e := &Engine{
		cfg:     cfg,
		maxVUs:  maxVUs,
		planned: planned,
		sink:    metrics.NewSink(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MaxVUs is the largest worker count the load shape asks for.
func (e *Engine) MaxVUs() int {
	return e.maxVUs
}

// PlannedDuration is the length of the load shape, excluding the graceful stop.
func (e *Engine) PlannedDuration() time.Duration {
	return e.planned
}

// Sink is the sink the run records into.
func (e *Engine) Sink() *metrics.Sink {
	return e.sink
}

// ActiveVUs reports the number of running workers, zero before and after a run.
func (e *Engine) ActiveVUs() int {
	if r := e.runner.Load(); r != nil {
		return r.Active()
	}
	return 0
}

// Run drives the whole plan, drains the workers and returns the summary. A
// cancelled ctx ends the run early; the summary is still returned, marked
// Aborted. Failed thresholds are reported in the summary, not as an error.
func (e *Engine) Run(ctx context.Context) (report.Summary, error) {
	if !e.started.CompareAndSwap(false, true) {
		return report.Summary{}, ErrAlreadyStarted
	}

	client, err := httpclient.New(httpclient.Options{
		BaseURL:        e.cfg.BaseURL,
		Timeout:        e.cfg.Timeout,
		Header:         e.cfg.Headers,
		Transport:      e.transport,
		TracerProvider: e.tracerProvider,
		Propagate:      e.propagate,
	})
	if err != nil {
		return report.Summary{}, &ConfigError{Err: err}
	}
	defer client.Close()

	var failures *logging.FailureLogger
	if e.cfg.LogErrors {
		failures = logging.NewFailureLogger(e.logger, logging.DefaultFailureRate)
	}

	var tracer trace.Tracer
	if e.tracerProvider != nil {
		tracer = e.tracerProvider.Tracer(tracerName)
	}

	exec, err := executor.New(executor.Options{
		Profile:    e.cfg.NewProfile(),
		Client:     client,
		Classifier: classify.New(e.cfg.Classifier),
		Sink:       e.sink,
		Tracer:     tracer,
		Failures:   failures,
		Logger:     e.logger,
	})
	if err != nil {
		return report.Summary{}, &ConfigError{Err: err}
	}

	r, err := runner.New(runner.Options{
		Stages:       e.cfg.Stages,
		VUs:          e.cfg.VUs,
		Duration:     e.cfg.Duration,
		GracefulStop: e.cfg.GracefulStop,
		Seed:         e.cfg.Seed,
		Executor:     exec,
		OnScale: func(active int) {
			e.sink.Gauge(report.MetricVUs, float64(active))
		},
	})
	if err != nil {
		return report.Summary{}, &ConfigError{Err: err}
	}
	e.runner.Store(r)
	e.sink.Gauge(report.MetricVUsMax, float64(r.MaxTarget()))

	startedAt := time.Now()
	e.logger.Info().
		Str("scenario", e.cfg.Scenario).
		Str("base_url", e.cfg.BaseURL).
		Int("max_vus", r.MaxTarget()).
		Dur("planned", r.PlannedDuration()).
		Msg("run started")

	res := r.Run(ctx)
	e.runner.Store(nil)
	if res.Iterations > 0 {
		e.sink.Count(MetricIterations, float64(res.Iterations))
	}

	snap := e.sink.Snapshot(res.Duration)
	verdict := threshold.Evaluate(snap, e.cfg.Thresholds)

	summary := report.Summary{
		RunID:          report.NewRunID(),
		Scenario:       e.cfg.Scenario,
		BaseURL:        e.cfg.BaseURL,
		StartedAt:      startedAt,
		Duration:       res.Duration,
		MaxVUs:         res.MaxActive,
		Iterations:     res.Iterations,
		Interrupted:    res.Interrupted,
		Aborted:        res.Aborted,
		Outcomes:       report.OutcomeCounts(snap),
		Metrics:        snap,
		Thresholds:     verdict,
		Passed:         verdict.Passed,
		SuppressedLogs: failures.Suppressed(),
	}
	if e.cfg.Summarize != nil {
		summary.Domain = e.cfg.Summarize(snap)
	}

	event := e.logger.Info()
	if !verdict.Passed {
		event = e.logger.Warn().Int("failed_thresholds", len(verdict.Failed()))
	}
	event.
		Str("run_id", summary.RunID).
		Int64("iterations", res.Iterations).
		Int64("interrupted", res.Interrupted).
		Bool("aborted", res.Aborted).
		Dur("duration", res.Duration).
		Msg("run finished")

	return summary, nil
}
