package obs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

func TestNoopTracerReturnsInputContextAndIgnoresSpanCalls(t *testing.T) {
	tracer := NewNoop()
	ctx := context.WithValue(context.Background(), struct{}{}, "marker")

	runCtx, runSpan := tracer.StartRun(ctx, "run-1", "book a flight")
	if runCtx != ctx {
		t.Fatal("StartRun returned a different context than it was given")
	}
	runSpan.SetError(errors.New("boom"))
	runSpan.End()

	stepCtx, stepSpan := tracer.StartStep(ctx, 1, "iteration")
	if stepCtx != ctx {
		t.Fatal("StartStep returned a different context than it was given")
	}
	stepSpan.SetError(nil)
	stepSpan.End()
}

func TestInitWithoutOtelBuildTagReturnsNoop(t *testing.T) {
	tracer, shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: true}, slog.Default())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if tracer == nil {
		t.Fatal("Init() returned a nil Tracer")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}
