package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts an internal span with the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpanWith(ctx, Tracer(), name, attrs...)
}

// StartSpanWith starts an internal span with tracer.
func StartSpanWith(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys of synthesis spans.
var (
	AttrTarget    = attribute.Key("invoker.target")
	AttrClassName = attribute.Key("invoker.class")
	AttrNaming    = attribute.Key("invoker.naming")
	AttrStage     = attribute.Key("invoker.stage")
	AttrStrategy  = attribute.Key("invoker.loader.strategy")
	AttrBytes     = attribute.Key("invoker.artifact.bytes")
	AttrScope     = attribute.Key("invoker.scope")
)
