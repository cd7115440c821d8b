package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/internal/browserworker"
	"github.com/nerovaautomation/nerovaagent/internal/config"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/loop"
	"github.com/nerovaautomation/nerovaagent/internal/obs"
	"github.com/nerovaautomation/nerovaagent/internal/store"
)

var (
	runContextNotes string
	runMaxSteps     int
	runBootURL      string
	runDBPath       string
	runArtifacts    string
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Drive a single run against an in-process Chromium worker and print its summary",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runOneShot(strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&runContextNotes, "context", "", "initial mid-run context override")
	cmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "override the configured max step count (0 = use config default)")
	cmd.Flags().StringVar(&runBootURL, "boot-url", "", "URL to navigate to before the bootstrap phase")
	cmd.Flags().StringVar(&runDBPath, "db", "nerovaagent.db", "path to the run index SQLite file")
	cmd.Flags().StringVar(&runArtifacts, "artifacts", "runs", "root directory for per-run journal artifacts")
	return cmd
}

func runOneShot(prompt string) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("interrupt received, aborting run")
		cancel()
	}()

	tracer, shutdownTracer, err := obs.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	runStore, err := store.Open(runDBPath)
	if err != nil {
		logger.Error("failed to open run index", "error", err)
		os.Exit(1)
	}
	defer runStore.Close()

	worker, err := browserworker.New(browserworker.Options{Headless: cfg.Brain.Headless, KeepBrowser: cfg.Brain.KeepBrowser})
	if err != nil {
		logger.Error("failed to launch worker", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	llm := llmclient.NewClient()
	l := loop.New(loop.Config{
		Driver:         worker,
		Critic:         llm,
		Assistant:      llm,
		ArtifactsRoot:  runArtifacts,
		Store:          runStore,
		Logger:         logger,
		Tracer:         tracer,
		CriticModel:    cfg.Critic.Model,
		AssistantModel: cfg.Assistant.Model,
		AssistantID:    cfg.Assistant.AssistantID,
		MaxSteps:       cfg.Brain.MaxSteps,
		BootURL:        cfg.Brain.BootURL,
		PollTimeout:    time.Duration(cfg.Assistant.PollTimeoutMs) * time.Millisecond,
	})

	summary, err := l.Run(ctx, loop.RunRequest{
		Prompt:       prompt,
		ContextNotes: runContextNotes,
		MaxSteps:     runMaxSteps,
		BootURL:      runBootURL,
	})
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(summary)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "run error:", err)
		os.Exit(1)
	}
}
