package observability

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

// ServiceName identifies this program in traces and pushed metrics.
const ServiceName = "airq"

// SetupTracing installs a global tracer provider that writes spans to w when
// TRACE_STDOUT is enabled. Otherwise the global no-op tracer stays in place.
// The returned shutdown flushes pending spans and is always safe to call.
func SetupTracing(cfg *config.Config, w io.Writer) (func(context.Context) error, error) {
	if !cfg.TraceStdout {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
	)

	// Synchronous export: a batch run ends right after the last span.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
