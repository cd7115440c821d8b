package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/internal/browserworker"
	"github.com/nerovaautomation/nerovaagent/internal/brainhttp"
	"github.com/nerovaautomation/nerovaagent/internal/config"
	"github.com/nerovaautomation/nerovaagent/internal/controlplane"
	"github.com/nerovaautomation/nerovaagent/internal/driver"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/loop"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/netlisten"
	"github.com/nerovaautomation/nerovaagent/internal/obs"
	"github.com/nerovaautomation/nerovaagent/internal/store"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

var (
	serveLocalWorker bool
	serveDBPath      string
	serveArtifacts   string
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the brain HTTP surface, agent pool, and control plane",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	cmd.Flags().BoolVar(&serveLocalWorker, "local-worker", false, "launch an in-process Chromium worker instead of waiting for a remote one")
	cmd.Flags().StringVar(&serveDBPath, "db", "nerovaagent.db", "path to the run index SQLite file")
	cmd.Flags().StringVar(&serveArtifacts, "artifacts", "runs", "root directory for per-run journal artifacts")
	return cmd
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := config.Watch(cfgPath, cfg, logger); err != nil {
			logger.Warn("config watch failed, continuing on static config", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer, shutdownTracer, err := obs.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	runStore, err := store.Open(serveDBPath)
	if err != nil {
		logger.Error("failed to open run index", "error", err)
		os.Exit(1)
	}
	defer runStore.Close()

	llm := llmclient.NewClient()
	pool := driver.NewPool()
	driverServer := driver.NewServer(pool, logger)
	registry := controlplane.NewRegistry()
	cpServer := controlplane.NewServer(registry, logger)

	var localWorker *browserworker.Worker
	if serveLocalWorker {
		localWorker, err = browserworker.New(browserworker.Options{Headless: cfg.Brain.Headless, KeepBrowser: cfg.Brain.KeepBrowser})
		if err != nil {
			logger.Error("failed to launch local worker", "error", err)
			os.Exit(1)
		}
		defer localWorker.Close()
		logger.Info("local worker launched", "headless", cfg.Brain.Headless)
	}

	brain := brainhttp.New(llm, llm)
	brain.CriticModel = cfg.Critic.Model
	brain.AssistantModel = cfg.Assistant.Model
	brain.AssistantID = cfg.Assistant.AssistantID
	brain.Logger = logger

	dispatcher := &runDispatcher{
		cfg:         cfg,
		logger:      logger,
		tracer:      tracer,
		store:       runStore,
		registry:    registry,
		llm:         llm,
		pool:        pool,
		localWorker: localWorker,
	}

	mux := http.NewServeMux()
	mux.Handle("/", brain.BuildMux())
	mux.Handle("/v1/driver/ws", driverServer.BuildMux())
	mux.HandleFunc(protocol.RouteControlPlane, cpServer.Handler())
	mux.HandleFunc("POST /v1/runs", dispatcher.handleStartRun)

	tsCleanup, err := netlisten.Serve(ctx, cfg.Tailscale, mux, logger)
	if err != nil {
		logger.Error("failed to start tailnet listener", "error", err)
		os.Exit(1)
	}
	if tsCleanup != nil {
		defer tsCleanup()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Brain.Host, cfg.Brain.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("graceful shutdown initiated", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("nerovaagent serving",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"addr", addr,
		"localWorker", serveLocalWorker,
	)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("serve error", "error", err)
		os.Exit(1)
	}
}

// runDispatcher turns a POST /v1/runs request into one internal/loop.Run
// call (SPEC_FULL §6 addition — the brain HTTP surface from spec.md §6 is
// stateless by design, so starting a stateful Control Loop run needs its
// own endpoint; everything downstream of it is unchanged loop machinery).
type runDispatcher struct {
	cfg         *config.Config
	logger      *slog.Logger
	tracer      obs.Tracer
	store       *store.Store
	registry    *controlplane.Registry
	llm         *llmclient.Client
	pool        *driver.Pool
	localWorker *browserworker.Worker
}

type startRunRequest struct {
	Prompt       string `json:"prompt"`
	ContextNotes string `json:"contextNotes,omitempty"`
	MaxSteps     int    `json:"maxSteps,omitempty"`
	BootURL      string `json:"bootUrl,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
	CriticKey    string `json:"criticKey,omitempty"`
	AssistantKey string `json:"assistantKey,omitempty"`
}

func (d *runDispatcher) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeDispatchError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodePromptRequired, "invalid JSON body"))
		return
	}

	snap := d.cfg.Snapshot()
	var loopDriver loop.Driver
	if d.localWorker != nil {
		loopDriver = d.localWorker
	} else {
		agent, err := d.pool.PickAgent(req.AgentID)
		if err != nil {
			writeDispatchError(w, http.StatusServiceUnavailable, err)
			return
		}
		loopDriver = &driver.AgentDriver{Agent: agent}
	}

	l := loop.New(loop.Config{
		Driver:         loopDriver,
		Critic:         d.llm,
		Assistant:      d.llm,
		ArtifactsRoot:  serveArtifacts,
		Store:          d.store,
		Registry:       d.registry,
		Logger:         d.logger,
		Tracer:         d.tracer,
		CriticModel:    snap.Critic.Model,
		AssistantModel: snap.Assistant.Model,
		AssistantID:    snap.Assistant.AssistantID,
		MaxSteps:       snap.Brain.MaxSteps,
		BootURL:        snap.Brain.BootURL,
		PollTimeout:    time.Duration(snap.Assistant.PollTimeoutMs) * time.Millisecond,
	})

	summary, err := l.Run(r.Context(), loop.RunRequest{
		Prompt:       req.Prompt,
		ContextNotes: req.ContextNotes,
		MaxSteps:     req.MaxSteps,
		BootURL:      req.BootURL,
		CriticKey:    req.CriticKey,
		AssistantKey: req.AssistantKey,
	})
	if err != nil && summary == nil {
		writeDispatchError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "summary": summary})
}

func writeDispatchError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
}
