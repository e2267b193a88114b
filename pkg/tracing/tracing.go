// Package tracing installs the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/mxn2020/prompt-verse-io/pkg/lifecycle"
)

// System owns the tracer provider for the process.
type System interface {
	// Start installs the provider globally and registers a flush on shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type provider struct {
	cfg     *Config
	version string
	logger  *slog.Logger
}

// New returns a tracing System. Nothing is installed until Start; when
// cfg.Enabled is false Start leaves the global no-op provider in place.
func New(cfg *Config, version string, logger *slog.Logger) System {
	return &provider{
		cfg:     cfg,
		version: version,
		logger:  logger.With("system", "tracing"),
	}
}

func (p *provider) Start(lc *lifecycle.Coordinator) error {
	if !p.cfg.Enabled {
		p.logger.Info("tracing disabled")
		return nil
	}

	ctx := lc.Context()

	exporter, err := p.exporter(ctx)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(p.cfg.ServiceName),
			semconv.ServiceVersionKey.String(p.version),
		),
	)
	if err != nil {
		p.logger.Warn("trace resource init failed", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.logger.Info("tracing initialized", "exporter", p.cfg.Exporter, "endpoint", p.cfg.Endpoint)

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(flushCtx); err != nil {
			p.logger.Error("tracer provider shutdown failed", "error", err)
			return
		}
		p.logger.Info("tracer provider stopped")
	})

	return nil
}

func (p *provider) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if p.cfg.Exporter == ExporterStdout {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	opts := []otlptracehttp.Option{}
	if p.cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(p.cfg.Endpoint))
	}
	if p.cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(p.cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(p.cfg.Headers))
	}

	return otlptracehttp.New(ctx, opts...)
}
