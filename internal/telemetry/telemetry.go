// Package telemetry wires the monitor's root step to OpenTelemetry: a
// span per internal/hna.SlicesTree.Step call and a counter/gauge pair
// tracking verdicts emitted and live slices, exported to stdout in
// non-production mode. Nested HNL and atom-monitor steps are not
// instrumented.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies this module's spans and instruments to
// whatever backend consumes the stdout exporters below.
const InstrumentationName = "github.com/hna-go/hnamon"

// Shutdown flushes and stops the providers Setup installed.
type Shutdown func(ctx context.Context) error

// Setup installs a global TracerProvider and MeterProvider backed by
// stdout exporters, a non-production wiring useful for local runs and
// fixture replay when no collector endpoint is configured. Output
// is written to w; pass io.Discard to keep telemetry active but silent
// (useful under test).
func Setup(w io.Writer) (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutting down tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutting down meter provider: %w", err)
		}
		return nil
	}, nil
}

// Discard installs nothing and returns a Shutdown that does nothing, so
// the global providers stay OpenTelemetry's no-op defaults unless Setup
// has run; for tests and for `cmd/hnamon` invocations run with telemetry
// disabled.
func Discard() Shutdown {
	return func(context.Context) error { return nil }
}

// Tracer returns the package-wide tracer; internal/hna.SlicesTree.Step is
// its only instrumentation point.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Meter returns the package-wide meter live-instance and verdict
// instruments are registered against.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Stderr is the default telemetry sink for a CLI invocation of
// `cmd/hnamon`: diagnostics belong on stderr so stdout stays reserved for
// a command's own machine-readable output (verdict JSON, check results).
var Stderr io.Writer = os.Stderr
