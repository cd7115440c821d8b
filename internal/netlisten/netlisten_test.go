package netlisten

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

func TestServeWithoutHostnameIsANoop(t *testing.T) {
	cleanup, err := Serve(context.Background(), config.TailscaleConfig{}, http.NewServeMux(), slog.Default())
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if cleanup != nil {
		t.Fatal("Serve() returned a non-nil Cleanup with no hostname configured")
	}
}

func TestServeWithoutTsnetBuildTagWarnsAndNoops(t *testing.T) {
	cleanup, err := Serve(context.Background(), config.TailscaleConfig{Hostname: "agent"}, http.NewServeMux(), slog.Default())
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if cleanup != nil {
		t.Fatal("Serve() returned a non-nil Cleanup without -tags tsnet")
	}
}
