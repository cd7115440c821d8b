package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/nerovaautomation/nerovaagent/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nerovaagent",
	Short: "nerovaagent — autonomous web-browsing agent",
	Long:  "nerovaagent drives remote browser workers toward a natural-language goal under the direction of a vision Critic model, with a local LLM-disambiguation Assistant as fallback.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: nerovaagent.json5 or $NEROVA_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nerovaagent %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("NEROVA_CONFIG"); v != "" {
		return v
	}
	return "nerovaagent.json5"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
