package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability bridges pipeline operation metrics into the OTel meter
// provider, exported through the shared Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"operations.processed",
		otelmetric.WithDescription("Number of pipeline operations processed"),
	)

	opDuration, _ := meter.Float64Histogram(
		"operations.duration",
		otelmetric.WithDescription("Pipeline operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

// RecordOperation counts one processed operation with its outcome.
func (o *Observability) RecordOperation(ctx context.Context, operation, outcome string) {
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordDuration records how long an operation took, in milliseconds.
func (o *Observability) RecordDuration(ctx context.Context, operation string, ms float64) {
	if o.opDuration != nil {
		o.opDuration.Record(ctx, ms, otelmetric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}

// Shutdown flushes the meter provider.
func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(context.Background())
	}
}
