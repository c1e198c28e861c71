// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope used by every console instrument.
const MeterName = "supportconsole"

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// Instruments groups the counters and histograms recorded by the job runner
// and the workflow orchestrator. A nil *Instruments records nothing.
type Instruments struct {
	jobRuns          metric.Int64Counter
	jobDuration      metric.Float64Histogram
	workflowOutcomes metric.Int64Counter
	compensations    metric.Int64Counter
}

// NewInstruments registers the console instruments on meter.
// Pass otel.Meter(MeterName) to use the global provider.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	jobRuns, err := meter.Int64Counter("console.job.runs",
		metric.WithDescription("Remote jobs run to completion, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create job runs counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("console.job.duration",
		metric.WithDescription("Wall-clock duration of remote jobs"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create job duration histogram: %w", err)
	}

	outcomes, err := meter.Int64Counter("console.workflow.outcomes",
		metric.WithDescription("Terminal workflow outcomes, by action and environment"))
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow outcome counter: %w", err)
	}

	compensations, err := meter.Int64Counter("console.workflow.compensations",
		metric.WithDescription("Compensation attempts after remote failures"))
	if err != nil {
		return nil, fmt.Errorf("failed to create compensation counter: %w", err)
	}

	return &Instruments{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		workflowOutcomes: outcomes,
		compensations:    compensations,
	}, nil
}

// RecordJob records one finished job run.
func (i *Instruments) RecordJob(ctx context.Context, prefix, outcome string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.String("outcome", outcome),
	)
	i.jobRuns.Add(ctx, 1, attrs)
	i.jobDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordWorkflow records one terminal workflow outcome.
func (i *Instruments) RecordWorkflow(ctx context.Context, action, environment, outcome string) {
	if i == nil {
		return
	}
	i.workflowOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("environment", environment),
		attribute.String("outcome", outcome),
	))
}

// RecordCompensation records one compensation attempt and whether it succeeded.
func (i *Instruments) RecordCompensation(ctx context.Context, action string, ok bool) {
	if i == nil {
		return
	}
	i.compensations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("ok", ok),
	))
}
