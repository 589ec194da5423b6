package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "opsboard"

// StartBrokerSpan starts a span for one credential broker operation
// (start, complete, refresh, status).
func StartBrokerSpan(ctx context.Context, op, provider string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "broker."+op,
		trace.WithAttributes(
			attribute.String("oauth.provider", provider),
		),
	)
}

// StartStatusCheckSpan starts a span for one aggregator check.
func StartStatusCheckSpan(ctx context.Context, name, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "status.check",
		trace.WithAttributes(
			attribute.String("integration.name", name),
			attribute.String("integration.check", kind),
		),
	)
}
