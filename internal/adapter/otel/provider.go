package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter kinds accepted in Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Config holds OpenTelemetry provider configuration, read from OTEL_*
// variables by ConfigFromEnv.
type Config struct {
	ServiceName    string        `envconfig:"SERVICE_NAME" default:"delayguard"`
	ServiceVersion string        `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	Environment    string        `envconfig:"ENVIRONMENT" default:"development"`
	Exporter       string        `envconfig:"EXPORTER" default:"stdout"`
	SampleRatio    float64       `envconfig:"SAMPLE_RATIO" default:"1"`
	MetricInterval time.Duration `envconfig:"METRIC_INTERVAL" default:"60s"`

	// Insecure sends OTLP over plain HTTP; set for the development environment.
	Insecure bool `ignored:"true"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("otel", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading otel environment: %w", err)
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return Config{}, fmt.Errorf("otel sample ratio %v: must be within [0, 1]", cfg.SampleRatio)
	}
	cfg.Insecure = cfg.Environment == "development"
	return cfg, nil
}

// Providers holds the registered providers.
type Providers struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
}

// Shutdown flushes pending telemetry and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	if err := p.Meter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// Setup builds the tracer and meter providers for cfg and registers them
// globally together with the W3C propagators. Shutdown must be called on
// exit.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	spans, metrics, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceOpts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	if spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(spans))
	}

	meterOpts := []metric.Option{metric.WithResource(res)}
	if metrics != nil {
		interval := cfg.MetricInterval
		if interval <= 0 {
			interval = time.Minute
		}
		meterOpts = append(meterOpts, metric.WithReader(
			metric.NewPeriodicReader(metrics, metric.WithInterval(interval)),
		))
	}

	p := &Providers{
		Tracer: trace.NewTracerProvider(traceOpts...),
		Meter:  metric.NewMeterProvider(meterOpts...),
	}

	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return p, nil
}

// newExporters returns nil exporters for ExporterNone.
func newExporters(ctx context.Context, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		var traceOpts []otlptracehttp.Option
		var metricOpts []otlpmetrichttp.Option
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		spans, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating otlp trace exporter: %w", err)
		}
		metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		return spans, metrics, nil

	case ExporterStdout:
		spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		metrics, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return spans, metrics, nil

	case ExporterNone:
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported exporter: %q (use %q, %q or %q)",
			cfg.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
	}
}
