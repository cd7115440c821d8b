package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively generate a config file",
		Run: func(cmd *cobra.Command, args []string) {
			runInit()
		},
	}
}

// runInit walks the operator through the handful of settings worth asking
// about interactively (host/port, headless mode, Critic/Assistant models,
// API keys) and writes the result as JSON5 — the rest stays on
// config.Default()'s baseline and can be hand-edited afterward.
func runInit() {
	def := config.Default()

	host := def.Brain.Host
	port := strconv.Itoa(def.Brain.Port)
	headless := true
	criticModel := def.Critic.Model
	assistantModel := def.Assistant.Model
	criticKey := ""
	assistantKey := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Host to bind the brain HTTP surface on").Value(&host),
			huh.NewInput().Title("Port").Value(&port).Validate(func(s string) error {
				if _, err := strconv.Atoi(s); err != nil {
					return fmt.Errorf("must be a number")
				}
				return nil
			}),
			huh.NewConfirm().Title("Run Chromium headless?").Value(&headless),
		),
		huh.NewGroup(
			huh.NewInput().Title("Critic model").Value(&criticModel),
			huh.NewInput().Title("Assistant model").Value(&assistantModel),
		),
		huh.NewGroup(
			huh.NewInput().Title("Critic OpenAI API key (leave blank to use CRITIC_OPENAI_KEY/OPENAI_API_KEY)").Value(&criticKey).EchoMode(huh.EchoModePassword),
			huh.NewInput().Title("Assistant OpenAI API key (leave blank to use OPENAI_API_KEY)").Value(&assistantKey).EchoMode(huh.EchoModePassword),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "init cancelled:", err)
		os.Exit(1)
	}

	portNum, _ := strconv.Atoi(port)
	cfg := config.Default()
	cfg.Brain.Host = host
	cfg.Brain.Port = portNum
	cfg.Brain.Headless = headless
	cfg.Critic.Model = criticModel
	cfg.Assistant.Model = assistantModel

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to render config:", err)
		os.Exit(1)
	}

	path := resolveConfigPath()
	if err := os.WriteFile(path, out, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write config:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\n", path)
	if criticKey != "" || assistantKey != "" {
		fmt.Println("API keys are not persisted to the config file — export them as environment variables instead:")
		if criticKey != "" {
			fmt.Println("  export CRITIC_OPENAI_KEY=" + criticKey)
		}
		if assistantKey != "" {
			fmt.Println("  export NEROVA_AGENT_ASSISTANT_KEY=" + assistantKey)
		}
	}
}
