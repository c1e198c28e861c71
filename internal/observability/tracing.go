package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// spanFlushInterval bounds how long a finished span waits for export.
const spanFlushInterval = time.Second

func noopShutdown(context.Context) error { return nil }

// InitTracer sends job and workflow spans to the OTLP collector at endpoint
// and returns the provider's shutdown, which flushes pending spans. An empty
// endpoint leaves the global no-op provider in place.
func InitTracer(ctx context.Context, service, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return noopShutdown, nil
	}

	res := resource.NewSchemaless(semconv.ServiceName(service))

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(spanFlushInterval)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
