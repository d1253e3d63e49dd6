package config

import (
	"context"
	"errors"
	"os"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/version"
)

const StdoutEndpoint = "stdout"

// Telemetry holds the installed providers
type Telemetry struct {
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

// SetupTelemetry installs global meter and tracer providers exporting to
// TelemetryEndpoint. Runtime metrics are collected as well.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "gfs"),
		attribute.String("service.version", version.Version),
	)
	var metricExp sdkmetric.Exporter
	var traceExp sdktrace.SpanExporter
	var err error
	if TelemetryEndpoint == StdoutEndpoint {
		if metricExp, err = stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr)); err != nil {
			return nil, err
		}
		if traceExp, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr)); err != nil {
			return nil, err
		}
	} else {
		if metricExp, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure()); err != nil {
			return nil, err
		}
		if traceExp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(TelemetryEndpoint),
			otlptracegrpc.WithInsecure()); err != nil {
			return nil, err
		}
	}
	ret := &Telemetry{
		meters: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second)))),
		traces: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExp)),
	}
	otel.SetMeterProvider(ret.meters)
	otel.SetTracerProvider(ret.traces)

	err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	log.Debug("telemetry enabled", log.String("endpoint", TelemetryEndpoint))
	return ret, nil
}

// Shutdown flushes pending data
func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := errors.Join(t.traces.Shutdown(ctx), t.meters.Shutdown(ctx)); err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}
