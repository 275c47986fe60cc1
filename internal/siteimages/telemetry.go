package siteimages

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "finitefield.org/airtools-web/internal/siteimages"

var (
	tracer = otel.Tracer(instrumentationName)

	cacheLookups  metric.Int64Counter
	fetchFailures metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)
	// Instrument creation only fails on invalid names; the returned
	// instrument is a usable no-op in that case.
	cacheLookups, _ = meter.Int64Counter("siteimages.cache.lookups",
		metric.WithDescription("Single-key cache lookups by outcome."))
	fetchFailures, _ = meter.Int64Counter("siteimages.fetch.failures",
		metric.WithDescription("Failed backend fetches by error kind."))
}

func recordLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordFailure(ctx context.Context, span trace.Span, op string, err error) {
	kind := Kind(err).String()
	fetchFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", kind),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
