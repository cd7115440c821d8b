//go:build tsnet

package netlisten

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"tailscale.com/tsnet"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

func serve(ctx context.Context, cfg config.TailscaleConfig, handler http.Handler, logger *slog.Logger) (Cleanup, error) {
	if cfg.Hostname == "" {
		return nil, nil
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       cfg.StateDir,
		AuthKey:   cfg.AuthKey,
		Ephemeral: cfg.Ephemeral,
		Logf:      func(string, ...any) {}, // tsnet's own logs are noisy; nerovaagent logs the outcome itself below
	}
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("netlisten: start tsnet server: %w", err)
	}

	ln, err := srv.Listen("tcp", ":80")
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("netlisten: listen on tailnet: %w", err)
	}
	if cfg.EnableTLS {
		ln, err = tlsListener(srv, ln)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("netlisten: wrap tailnet listener with TLS: %w", err)
		}
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		if err := httpServer.Serve(ln); err != nil && logger != nil {
			logger.Warn("tailnet listener stopped", "error", err)
		}
	}()

	if logger != nil {
		logger.Info("serving brain HTTP surface over tailnet", "hostname", cfg.Hostname, "tls", cfg.EnableTLS)
	}

	return func() {
		httpServer.Close()
		srv.Close()
	}, nil
}

func tlsListener(srv *tsnet.Server, inner net.Listener) (net.Listener, error) {
	lc, err := srv.LocalClient()
	if err != nil {
		return nil, err
	}
	return tls.NewListener(inner, &tls.Config{GetCertificate: lc.GetCertificate}), nil
}
