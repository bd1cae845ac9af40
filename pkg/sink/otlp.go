package sink

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"hammer/pkg/metric"
)

// OTLPInstrument is the name of the gauge every generated metric is recorded on.
const OTLPInstrument = "hammer.metric"

// OTLP records every metric on an OpenTelemetry gauge, keyed by metric name,
// host and tags. Points are pushed by a periodic reader and on every flush.
type OTLP struct {
	provider *sdkmetric.MeterProvider
	gauge    otelmetric.Int64Gauge
}

func NewOTLP(ctx context.Context, endpoint string, interval time.Duration, insecure bool) (*OTLP, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp: create exporter for %s: %w", endpoint, err)
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return newOTLP(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

func newOTLP(reader sdkmetric.Reader) (*OTLP, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", metric.Origin),
		)),
	)
	gauge, err := provider.Meter(metric.Origin).Int64Gauge(OTLPInstrument,
		otelmetric.WithDescription("Synthetic metric value generated by hammer"))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("otlp: create gauge: %w", err)
	}
	return &OTLP{provider: provider, gauge: gauge}, nil
}

func (o *OTLP) Emit(ctx context.Context, m metric.Metric) error {
	o.gauge.Record(ctx, m.Value, otelmetric.WithAttributes(
		attribute.String("metric.name", m.Name),
		attribute.String("host.name", m.Host),
		attribute.String("origin", m.Origin),
		attribute.StringSlice("tags", m.Tags),
	))
	return nil
}

func (o *OTLP) Flush(ctx context.Context) error {
	return o.provider.ForceFlush(ctx)
}

func (o *OTLP) Close() error {
	return o.provider.Shutdown(context.Background())
}
