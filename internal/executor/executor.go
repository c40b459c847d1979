// Package executor runs one load-test iteration: it asks the behavior profile
// for a request, sends it, classifies the response and records the samples.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hhplus/orderstorm/internal/behavior"
	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/httpclient"
	"github.com/hhplus/orderstorm/internal/logging"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/runner"
	"github.com/hhplus/orderstorm/internal/tracing"
)

// Doer sends a behavior request. *httpclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, r behavior.Request) (*httpclient.Response, error)
}

// Options wire an Executor. Profile, Client, Classifier and Sink are required.
type Options struct {
	Profile    behavior.Profile
	Client     Doer
	Classifier *classify.Classifier
	Sink       *metrics.Sink
	Tracer     trace.Tracer
	// Failures, when set, receives every request that was not acceptable.
	Failures *logging.FailureLogger
	Logger   zerolog.Logger
}

// Executor implements runner.Executor.
type Executor struct {
	profile    behavior.Profile
	client     Doer
	classifier *classify.Classifier
	sink       *metrics.Sink
	tracer     trace.Tracer
	failures   *logging.FailureLogger
	logger     zerolog.Logger
}

var _ runner.Executor = (*Executor)(nil)

// New validates opts and returns an Executor.
func New(opts Options) (*Executor, error) {
	switch {
	case opts.Profile == nil:
		return nil, errors.New("executor: profile is required")
	case opts.Client == nil:
		return nil, errors.New("executor: client is required")
	case opts.Classifier == nil:
		return nil, errors.New("executor: classifier is required")
	case opts.Sink == nil:
		return nil, errors.New("executor: sink is required")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Executor{
		profile:    opts.Profile,
		client:     opts.Client,
		classifier: opts.Classifier,
		sink:       opts.Sink,
		tracer:     tracer,
		failures:   opts.Failures,
		logger:     opts.Logger,
	}, nil
}

// Iterate sends one request for vu and returns the think time the profile
// chose. A request cut short by cancellation of ctx is recorded as a transport
// failure and the iteration returns no pause.
func (e *Executor) Iterate(ctx context.Context, vu *runner.VU) time.Duration {
	req, pause := e.profile.Next(vu.ID, vu.Rand)

	ctx, span := tracing.StartIterationSpan(ctx, e.tracer, req.Name, vu.ID, vu.Iteration)
	start := time.Now()
	resp, err := e.client.Do(ctx, req)
	interrupted := ctx.Err() != nil
	if interrupted && err == nil {
		err = &httpclient.TransportError{Op: req.Method, URL: req.Path, Err: ctx.Err(), Elapsed: time.Since(start)}
	}

	obs := classify.Observation{Err: err}
	if err != nil {
		elapsed := time.Since(start)
		var te *httpclient.TransportError
		if errors.As(err, &te) && te.Elapsed > 0 {
			elapsed = te.Elapsed
		}
		obs.Timings = httpclient.Timings{Total: elapsed, Duration: elapsed}
	} else {
		obs.Status = resp.Status
		obs.Body = resp.Body
		obs.Timings = resp.Timings
	}

	res := e.classifier.Record(e.sink, obs)

	attrs := []attribute.KeyValue{tracing.AttrOutcome.String(res.Outcome.String())}
	if obs.Status > 0 {
		attrs = append(attrs, tracing.AttrStatus.Int(obs.Status))
	}
	tracing.EndSpan(span, err, attrs...)
	if interrupted {
		return 0
	}

	if !res.Acceptable {
		e.failures.Log(logging.Failure{
			Worker:  vu.ID,
			Request: req.Name,
			Status:  obs.Status,
			Outcome: res.Outcome.String(),
			Checks:  res.FailedChecks,
			Err:     err,
		})
	}
	e.logger.Trace().
		Int("worker", vu.ID).
		Int64("iteration", vu.Iteration).
		Str("outcome", res.Outcome.String()).
		Dur("pause", pause).
		Msg("iteration done")
	return pause
}
