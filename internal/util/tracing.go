package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "notification-engine"

// Span attribute keys shared by the engine's instrumented paths
const (
	AttrMonitor     = attribute.Key("engine.monitor")
	AttrStoreDriver = attribute.Key("engine.store_driver")
	AttrEndpoint    = attribute.Key("backend.endpoint")
	AttrNotifyType  = attribute.Key("notification.type")
)

var tracer trace.Tracer

// TracerOptions describes where spans go and which engine produced them
type TracerOptions struct {
	Endpoint    string
	Environment string
	StoreDriver string
}

// InitTracer initializes OpenTelemetry tracing with Jaeger
func InitTracer(opts TracerOptions) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)),
	)
	if err != nil {
		return nil, err
	}

	res, err := tracerResource(context.Background(), opts)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(serviceName)

	GetLogger().Info("Tracer initialized",
		zap.String("service", serviceName),
		zap.String("endpoint", opts.Endpoint),
		zap.String("store_driver", opts.StoreDriver))
	return tp, nil
}

func tracerResource(ctx context.Context, opts TracerOptions) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(opts.Environment))
	}
	if opts.StoreDriver != "" {
		attrs = append(attrs, AttrStoreDriver.String(opts.StoreDriver))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// GetTracer returns the global tracer. Without InitTracer it is the otel no-op tracer.
func GetTracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(serviceName)
	}
	return tracer
}

// StartSpan starts a new span carrying the given attributes
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if len(attrs) == 0 {
		return GetTracer().Start(ctx, spanName)
	}
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}
