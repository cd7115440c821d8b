package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/config"
	"github.com/nerovaautomation/nerovaagent/internal/store"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("nerovaagent doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, running on defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Brain HTTP:")
	fmt.Printf("    %-16s %s:%d\n", "Listen:", cfg.Brain.Host, cfg.Brain.Port)
	fmt.Printf("    %-16s %d\n", "Max steps:", cfg.Brain.MaxSteps)
	fmt.Printf("    %-16s %v\n", "Headless:", cfg.Brain.Headless)

	fmt.Println()
	fmt.Println("  API keys:")
	if _, err := llmclient.ResolveCriticKey(""); err != nil {
		fmt.Printf("    %-16s MISSING (set CRITIC_OPENAI_KEY or OPENAI_API_KEY)\n", "Critic:")
	} else {
		fmt.Printf("    %-16s configured\n", "Critic:")
	}
	if _, err := llmclient.ResolveAssistantKey(""); err != nil {
		fmt.Printf("    %-16s MISSING (set RETRIEVER_OPENAI_KEY, NANO_OPENAI_KEY, or OPENAI_API_KEY)\n", "Assistant:")
	} else {
		fmt.Printf("    %-16s configured\n", "Assistant:")
	}

	fmt.Println()
	fmt.Println("  Run index:")
	dbPath := "nerovaagent.db"
	if s, err := store.Open(dbPath); err != nil {
		fmt.Printf("    %-16s OPEN FAILED (%s)\n", "Status:", err)
	} else {
		defer s.Close()
		runs, err := s.List(1)
		if err != nil {
			fmt.Printf("    %-16s %s (query failed: %s)\n", "Path:", dbPath, err)
		} else {
			fmt.Printf("    %-16s %s (%d most recent run fetched OK)\n", "Path:", dbPath, len(runs))
		}
	}

	fmt.Println()
	fmt.Println("  Chromium:")
	if path, err := exec.LookPath("chromium"); err == nil {
		fmt.Printf("    %-16s %s\n", "Found:", path)
	} else if path, err := exec.LookPath("google-chrome"); err == nil {
		fmt.Printf("    %-16s %s\n", "Found:", path)
	} else {
		fmt.Println("    Found:          none on PATH (go-rod will download one on first --local-worker launch)")
	}
}
