//go:build !otel

package obs

import (
	"context"
	"log/slog"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

// Init is the default build: tracing.enabled in config is accepted but
// ignored, and a warning is logged so an operator who set it knows the
// binary wasn't built with -tags otel.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (Tracer, Shutdown, error) {
	if cfg.Enabled && logger != nil {
		logger.Warn("telemetry.enabled is set but this binary was built without -tags otel; tracing is disabled")
	}
	return NewNoop(), func(context.Context) error { return nil }, nil
}
