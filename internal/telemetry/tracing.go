package telemetry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/warehoused/warehoused/internal/config"
)

// Tracer holds this process's own Jaeger self-tracing provider,
// independent of the trace/span data the warehouse stores on behalf of
// instrumented services. Start opens a span on it; the ingest and query
// paths do not call Start, so they emit no self-tracing spans.
type Tracer struct {
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer builds the self-tracing provider. When cfg.Enabled is
// false, it returns a Tracer backed by otel's global no-op tracer so
// callers never need a nil check.
func NewTracer(appName string, cfg config.TracingConfig, logger *logrus.Logger) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: otel.Tracer("noop")}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(logrus.Fields{
		"endpoint":    cfg.Endpoint,
		"sample_rate": cfg.SampleRate,
	}).Info("self-tracing initialized")

	return &Tracer{provider: provider, tracer: otel.Tracer(appName)}, nil
}

// Start opens a span for an internal operation (an ingest call, a query
// plan execution) and returns the derived context alongside it.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, operation)
}

// Shutdown flushes and closes the exporter. A no-op Tracer (tracing
// disabled) has nothing to shut down.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
