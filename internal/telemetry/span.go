// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// utilities for the poller.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for business context used across the application.
// Shared keys keep attribute naming consistent in traces.
const (
	AttrConnection    = attribute.Key("modem.connection")
	AttrParser        = attribute.Key("modem.parser")
	AttrSelectionTier = attribute.Key("modem.selection_tier")
	AttrDownstream    = attribute.Key("modem.downstream_channels")
	AttrUpstream      = attribute.Key("modem.upstream_channels")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a
// no-op span. This gives graceful degradation when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// Safe on nil spans and nil errors. The status description stays generic so
// device credentials embedded in URLs never land in trace status.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
