package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"recruit-portal/internal/common/logger"
)

// Config selects the exporters.
type Config struct {
	ServiceName    string
	JaegerEndpoint string // empty disables span export
	// Registerer receives the otel prometheus collector. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          otelmetric.Meter
	queryCounter   otelmetric.Int64Counter
	callDuration   otelmetric.Float64Histogram
}

// New builds the meter provider (prometheus exporter) and the tracer provider
// (jaeger exporter when configured). Exporter failures degrade to no-ops.
func New(cfg Config, log logger.Logger) *Observability {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "recruit-portal"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	o := &Observability{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	if cfg.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			log.Warn("Failed to create Jaeger exporter, tracing disabled", map[string]interface{}{
				"endpoint": cfg.JaegerEndpoint,
				"error":    err.Error(),
			})
		} else {
			o.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exp),
				sdktrace.WithResource(res),
			)
			otel.SetTracerProvider(o.tracerProvider)
			o.tracer = o.tracerProvider.Tracer(cfg.ServiceName)
		}
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(cfg.Registerer))
	if err != nil {
		log.Warn("Failed to create Prometheus exporter, otel metrics disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return o
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(o.meterProvider)
	o.meter = o.meterProvider.Meter(cfg.ServiceName)

	o.queryCounter, _ = o.meter.Int64Counter(
		"portal_queries_settled",
		otelmetric.WithDescription("Number of settled cache queries by status"),
	)
	o.callDuration, _ = o.meter.Float64Histogram(
		"portal_backend_duration",
		otelmetric.WithDescription("Backend call duration"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

// Tracer returns the tracer used for backend spans.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordQuerySettled(ctx context.Context, key, status string) {
	if o.queryCounter != nil {
		o.queryCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("key", key),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordBackendCall(ctx context.Context, operation string, duration time.Duration, outcome string) {
	if o.callDuration != nil {
		o.callDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

// Shutdown flushes spans and stops both providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
