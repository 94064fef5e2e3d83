// Package telemetry provides OpenTelemetry tracing, metrics, logs and
// Pyroscope profiling for the ledger service.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds tracing configuration.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// TracerProvider wraps the OpenTelemetry TracerProvider with lifecycle
// management. When tracing is disabled it is a no-op.
type TracerProvider struct {
	provider    *sdktrace.TracerProvider
	logger      *zap.Logger
	serviceName string

	mu                  sync.RWMutex
	spanProfilesEnabled bool
}

// NewTracerProvider creates a TracerProvider exporting over OTLP gRPC and
// installs it as the global provider together with W3C context propagation.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return &TracerProvider{logger: logger, serviceName: cfg.ServiceName}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := newServiceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerForRatio(cfg.SamplingRatio)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing started",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.String("service_name", cfg.ServiceName),
	)

	return &TracerProvider{provider: provider, logger: logger, serviceName: cfg.ServiceName}, nil
}

// newServiceResource is the shared OTEL resource for the trace, metric and
// log providers.
func newServiceResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// stopProvider drains one telemetry provider, bounded to ten seconds
// regardless of the caller's context. The trace, metric and log providers
// all shut down through it.
func stopProvider(ctx context.Context, logger *zap.Logger, component string, stop func(context.Context) error) error {
	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := stop(drainCtx); err != nil {
		logger.Error("Telemetry shutdown failed", zap.String("component", component), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s: %w", component, err)
	}
	logger.Info("Telemetry shutdown complete", zap.String("component", component))
	return nil
}

func samplerForRatio(ratio float64) sdktrace.Sampler {
	switch ratio {
	case 1.0:
		return sdktrace.AlwaysSample()
	case 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// EnableSpanProfiles wraps the provider with Pyroscope span profiles so CPU
// samples carry a span_id label. Must be called after the profiler has
// started; only CPU profiles are linked, and spans shorter than 10ms may
// carry no samples at the default 100Hz rate.
func (tp *TracerProvider) EnableSpanProfiles() error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.provider == nil || tp.spanProfilesEnabled {
		return nil
	}

	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.provider))
	tp.spanProfilesEnabled = true

	tp.logger.Info("Span profiles integration enabled",
		zap.String("service_name", tp.serviceName),
	)
	return nil
}

// IsSpanProfilesEnabled reports whether span profiles integration is on.
func (tp *TracerProvider) IsSpanProfilesEnabled() bool {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.spanProfilesEnabled
}

// Shutdown flushes pending spans and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return stopProvider(ctx, tp.logger, "tracer provider", tp.provider.Shutdown)
}

// Tracer returns a named tracer from the provider, falling back to the
// global provider when tracing is disabled.
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.provider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.provider.Tracer(name, opts...)
}

// IsEnabled reports whether a real provider is running.
func (tp *TracerProvider) IsEnabled() bool {
	return tp.provider != nil
}
