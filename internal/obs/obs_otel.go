//go:build otel

package obs

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

const instrumentationName = "github.com/nerovaautomation/nerovaagent/internal/loop"

// Init builds the real OTel exporter pipeline described by cfg. Protocol
// "http" selects otlptracehttp; anything else (including empty) defaults to
// otlptracegrpc, matching the teacher's own "grpc unless told otherwise"
// convention for OTLP config.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (Tracer, Shutdown, error) {
	if !cfg.Enabled {
		return NewNoop(), func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("obs: build otlp exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "nerovaagent"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("obs: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol, "service", serviceName)
	}

	return &otelTracer{tracer: tp.Tracer(instrumentationName)}, tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

type otelTracer struct {
	tracer trace.Tracer
}

func (t *otelTracer) StartRun(ctx context.Context, runID, basePrompt string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "run")
	span.SetAttributes(attribute.String("nerovaagent.run_id", runID), attribute.String("nerovaagent.base_prompt", basePrompt))
	return ctx, &otelSpan{span: span}
}

func (t *otelTracer) StartStep(ctx context.Context, step int, action string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "step")
	span.SetAttributes(attribute.Int("nerovaagent.step", step), attribute.String("nerovaagent.action", action))
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() { s.span.End() }
