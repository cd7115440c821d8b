//go:build !tsnet

package netlisten

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

func serve(ctx context.Context, cfg config.TailscaleConfig, handler http.Handler, logger *slog.Logger) (Cleanup, error) {
	if cfg.Hostname != "" && logger != nil {
		logger.Warn("tailscale.hostname is set but this binary was built without -tags tsnet; skipping tailnet listener")
	}
	return nil, nil
}
