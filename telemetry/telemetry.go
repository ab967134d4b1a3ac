// Package telemetry sets up OpenTelemetry trace and log export over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amp-labs/amp-state/logger"
	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	mut            sync.Mutex               //nolint:gochecknoglobals
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
	loggerProvider *sdklog.LoggerProvider   //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"               envDefault:"1.0.0"`
	Environment    string        `env:"OTEL_ENVIRONMENT"                   envDefault:"local"`
	Enabled        bool          `env:"OTEL_ENABLED"                       envDefault:"false"`
	TracesEndpoint string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogsEndpoint   string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"         envDefault:"5s"`
}

// LoadConfigFromEnv loads OpenTelemetry configuration from environment variables. The
// service name defaults to the logging subsystem.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing telemetry environment: %w", err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = logger.GetSubsystem(context.Background())
	}

	return cfg, nil
}

// Initialize sets up trace export when TracesEndpoint is set and log export when
// LogsEndpoint is set. Log records reach the collector through LogHandler.
func Initialize(ctx context.Context, config *Config) error {
	if !config.Enabled {
		slog.Info("OpenTelemetry is disabled")

		return nil
	}

	if config.TracesEndpoint == "" && config.LogsEndpoint == "" {
		slog.Warn("OpenTelemetry endpoints not configured, telemetry will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mut.Lock()
	defer mut.Unlock()

	if config.TracesEndpoint != "" {
		if err := initTraces(ctx, config, res); err != nil {
			return err
		}
	}

	if config.LogsEndpoint != "" {
		if err := initLogs(ctx, config, res); err != nil {
			return err
		}
	}

	slog.Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"traces", config.TracesEndpoint,
		"logs", config.LogsEndpoint,
	)

	return nil
}

func initTraces(ctx context.Context, config *Config, res *resource.Resource) error {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.TracesEndpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

func initLogs(ctx context.Context, config *Config, res *resource.Resource) error {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(config.LogsEndpoint),
		otlploghttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	return nil
}

// LogHandler returns an slog handler exporting records to the collector, or nil when
// log export is not initialized. Combine it with the console handler via logger.Tee.
func LogHandler(name string) slog.Handler {
	mut.Lock()
	defer mut.Unlock()

	if loggerProvider == nil {
		return nil
	}

	return otelslog.NewHandler(name, otelslog.WithLoggerProvider(loggerProvider))
}

// Shutdown flushes and stops the providers set up by Initialize.
func Shutdown(ctx context.Context) error {
	mut.Lock()
	defer mut.Unlock()

	var errs []error

	if tracerProvider != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, tracerProvider.Shutdown(ctx))
		tracerProvider = nil
	}

	if loggerProvider != nil {
		errs = append(errs, loggerProvider.Shutdown(ctx))
		loggerProvider = nil
	}

	return errors.Join(errs...)
}
