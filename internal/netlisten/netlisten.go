// Package netlisten optionally exposes the brain HTTP surface on a
// tailnet in addition to the daemon's normal listener — the same *http.Mux
// is served on both, so a caller reaching the daemon over Tailscale sees
// identical routes to one reaching it over the regular host/port. The real
// tsnet.Server backend is compiled in only under `-tags tsnet`; by default
// Serve is a no-op (with a warning if a hostname was configured anyway), so
// the daemon carries zero tailscale.com dependency weight unless an
// operator opts in.
package netlisten

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

// Cleanup stops the tailnet listener and releases its state directory.
type Cleanup func()

// Serve starts (or, without -tags tsnet, declines to start) a second
// listener for handler on the tailnet described by cfg. A zero Hostname
// means Tailscale is not configured; Serve returns a nil Cleanup in that
// case regardless of build tag.
func Serve(ctx context.Context, cfg config.TailscaleConfig, handler http.Handler, logger *slog.Logger) (Cleanup, error) {
	return serve(ctx, cfg, handler, logger)
}
