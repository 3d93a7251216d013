// Package telemetry wires the stdout OTel exporters that back C3's
// per-call snapshot spans, plus a process-uptime meter. The teacher's
// go.mod already carries the full OTel stack; this package is where it's
// actually exercised.
package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider/MeterProvider and their
// shutdown hooks.
type Provider struct {
	tp    *sdktrace.TracerProvider
	mp    *sdkmetric.MeterProvider
	start time.Time
}

// NewProvider builds a TracerProvider writing spans to w as newline-
// delimited JSON. Passing a nil w defaults to io.Discard (spans are still
// generated and sampled, just not printed) so callers can always obtain a
// tracer regardless of whether telemetry.enabled is set.
func NewProvider(w io.Writer) (*Provider, error) {
	if w == nil {
		w = io.Discard
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	reader := sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(time.Minute))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	p := &Provider{tp: tp, mp: mp, start: time.Now()}
	if err := p.registerUptimeGauge(); err != nil {
		return nil, err
	}
	return p, nil
}

// registerUptimeGauge exposes process uptime, in seconds, as an
// asynchronous OTel gauge read once per export interval.
func (p *Provider) registerUptimeGauge() error {
	meter := p.mp.Meter("trustgate")
	gauge, err := meter.Float64ObservableGauge(
		"trustgate.process.uptime_seconds",
		metric.WithDescription("Seconds since the process started."),
	)
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(gauge, time.Since(p.start).Seconds())
		return nil
	}, gauge)
	return err
}

// Tracer returns a named tracer off the process TracerProvider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes and stops both the tracer and meter exporters. Safe to
// call once at process exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	return p.mp.Shutdown(ctx)
}

// NewNoop returns a Provider whose spans are generated but discarded,
// for use when telemetry.enabled is false or in tests.
func NewNoop() *Provider {
	p, err := NewProvider(io.Discard)
	if err != nil {
		// stdouttrace.New against io.Discard cannot fail; this is
		// only reachable if that contract changes.
		panic(err)
	}
	return p
}
