package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on iteration spans.
const (
	AttrRequest   = attribute.Key("orderstorm.request")
	AttrWorker    = attribute.Key("orderstorm.worker")
	AttrIteration = attribute.Key("orderstorm.iteration")
	AttrOutcome   = attribute.Key("orderstorm.outcome")
	AttrStatus    = attribute.Key("http.response.status_code")
)

// StartIterationSpan starts the span that covers one worker iteration. The
// instrumented transport nests its request span underneath.
func StartIterationSpan(ctx context.Context, tracer trace.Tracer, request string, worker int, iteration int64) (context.Context, trace.Span) {
	spanName := "iteration"
	if request != "" {
		spanName = "iteration " + request
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		AttrWorker.Int(worker),
		AttrIteration.Int64(iteration),
	)
	if request != "" {
		span.SetAttributes(AttrRequest.String(request))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
