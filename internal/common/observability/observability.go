package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability holds the OTel meter provider and the engine-level meters.
type Observability struct {
	meterProvider     *metric.MeterProvider
	meter             otelmetric.Meter
	operationCounter  otelmetric.Int64Counter
	operationDuration otelmetric.Float64Histogram
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

	operationCounter, _ := meter.Int64Counter(
		"lifecycle.operations",
		otelmetric.WithDescription("Number of lifecycle operations processed"),
	)

	operationDuration, _ := meter.Float64Histogram(
		"lifecycle.operation.duration",
		otelmetric.WithDescription("Lifecycle operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:     provider,
		meter:             meter,
		operationCounter:  operationCounter,
		operationDuration: operationDuration,
	}
}

// RecordOperation counts a completed lifecycle operation by name and outcome.
func (o *Observability) RecordOperation(ctx context.Context, op, outcome string) {
	if o.operationCounter != nil {
		o.operationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordDuration records how long a lifecycle operation took.
func (o *Observability) RecordDuration(ctx context.Context, op string, duration time.Duration) {
	if o.operationDuration != nil {
		o.operationDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("op", op),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
