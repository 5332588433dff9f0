// Package telemetry wires the completer's tracing and metrics providers
// together and owns the meter instruments the engine updates as stages
// are created and resolved.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"

	oteltrace "github.com/opencompleter/completer/otel/trace"

	otelmetricprovider "github.com/opencompleter/completer/otel/metric"
)

const instrumentationName = "github.com/opencompleter/completer"

// Config names the OTLP collector endpoints and service identity used to
// start both providers. Either endpoint may be left blank to skip that
// provider — a deployment that only cares about traces need not also run
// a metrics collector.
type Config struct {
	ServiceName           string
	TraceExporterEndpoint  string
	MetricExporterEndpoint string
	MetricExportInterval   time.Duration
}

// Telemetry bundles the tracer and meter providers plus the instruments
// the engine reports against.
type Telemetry struct {
	traceProvider  *oteltrace.Provider
	metricProvider *otelmetricprovider.Provider

	stagesCreated     otelmetric.Int64Counter
	stagesResolvedOK  otelmetric.Int64Counter
	stagesResolvedErr otelmetric.Int64Counter
}

// New builds providers for the configured endpoints. Start must be called
// before any metric is recorded.
func New(cfg Config) *Telemetry {
	t := &Telemetry{}
	if cfg.TraceExporterEndpoint != "" {
		t.traceProvider = oteltrace.NewProvider(cfg.TraceExporterEndpoint, cfg.ServiceName)
	}
	if cfg.MetricExporterEndpoint != "" {
		interval := cfg.MetricExportInterval
		if interval == 0 {
			interval = 30 * time.Second
		}
		t.metricProvider = otelmetricprovider.NewProvider(cfg.MetricExporterEndpoint, cfg.ServiceName, interval)
	}
	return t
}

// Start starts the configured providers and registers the meter
// instruments the engine reports against.
func (t *Telemetry) Start(ctx context.Context) error {
	if t.traceProvider != nil {
		if err := t.traceProvider.Start(ctx); err != nil {
			return err
		}
	}
	if t.metricProvider != nil {
		if err := t.metricProvider.Start(ctx); err != nil {
			return err
		}
	}

	meter := otel.GetMeterProvider().Meter(instrumentationName)

	var err error
	t.stagesCreated, err = meter.Int64Counter("completer.stages.created",
		otelmetric.WithDescription("Number of graph stages created"))
	if err != nil {
		return err
	}
	t.stagesResolvedOK, err = meter.Int64Counter("completer.stages.resolved.success",
		otelmetric.WithDescription("Number of graph stages resolved successfully"))
	if err != nil {
		return err
	}
	t.stagesResolvedErr, err = meter.Int64Counter("completer.stages.resolved.failure",
		otelmetric.WithDescription("Number of graph stages resolved with a failure"))
	if err != nil {
		return err
	}
	return nil
}

// Stop flushes and shuts down the configured providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	if t.traceProvider != nil {
		if err := t.traceProvider.Stop(ctx); err != nil {
			return err
		}
	}
	if t.metricProvider != nil {
		return t.metricProvider.Stop(ctx)
	}
	return nil
}

// RecordStageCreated increments the stage-creation counter.
func (t *Telemetry) RecordStageCreated() {
	if t.stagesCreated == nil {
		return
	}
	t.stagesCreated.Add(context.Background(), 1)
}

// RecordStageResolved increments the success or failure counter.
func (t *Telemetry) RecordStageResolved(success bool) {
	counter := t.stagesResolvedErr
	if success {
		counter = t.stagesResolvedOK
	}
	if counter == nil {
		return
	}
	counter.Add(context.Background(), 1)
}
