package application

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/example/trainingcenter/internal/application"

// startSpan opens a span on the global tracer provider, which is a no-op until
// telemetry is configured.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// finishSpan records err on span and ends it. Expected outcomes such as validation
// failures are recorded as events without flagging the span as failed.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.String("error.kind", ErrorKind(err))))
		if ErrorKind(err) == "unexpected" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
