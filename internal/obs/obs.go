// Package obs wraps the optional distributed-tracing backend. A run's
// goroutine (spec.md §5) and its iterations are the natural span tree: one
// root span per run, one child span per Critic/Bootstrap step, letting an
// operator follow a single prompt end to end in a trace viewer. The real
// OTel exporter is compiled in only under `-tags otel`; by default Init
// returns a Tracer that emits nothing, so the daemon carries zero tracing
// dependencies unless an operator opts in.
package obs

import "context"

// Tracer starts spans around one Control Loop run and its iterations. The
// loop only ever needs this much of the OTel API surface, not the SDK
// directly — keeping internal/loop free of a build-tag split of its own.
type Tracer interface {
	StartRun(ctx context.Context, runID, basePrompt string) (context.Context, Span)
	StartStep(ctx context.Context, step int, action string) (context.Context, Span)
}

// Span is the subset of trace.Span the loop touches.
type Span interface {
	SetError(err error)
	End()
}

// Shutdown flushes and releases whatever backend Init wired up.
type Shutdown func(context.Context) error

type noopSpan struct{}

func (noopSpan) SetError(error) {}
func (noopSpan) End()           {}

type noopTracer struct{}

func (noopTracer) StartRun(ctx context.Context, runID, basePrompt string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) StartStep(ctx context.Context, step int, action string) (context.Context, Span) {
	return ctx, noopSpan{}
}

// NewNoop returns a Tracer that does nothing — the default when telemetry
// is disabled, and the whole implementation when built without -tags otel.
func NewNoop() Tracer { return noopTracer{} }
