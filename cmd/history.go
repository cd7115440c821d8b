package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nerovaautomation/nerovaagent/internal/store"
)

var historyLimit int

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs from the local run index",
		Run: func(cmd *cobra.Command, args []string) {
			runHistory()
		},
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list (0 = all)")
	cmd.AddCommand(historyShowCmd())
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the full detail of one run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runHistoryShow(args[0])
		},
	}
}

func runHistory() {
	s, err := store.Open("nerovaagent.db")
	if err != nil {
		fmt.Fprintln(os.Stderr, "history: open run index:", err)
		os.Exit(1)
	}
	defer s.Close()

	runs, err := s.List(historyLimit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history: list runs:", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return
	}

	const promptCol = 40
	printRow("RUN ID", "STATUS", "STEPS", "STARTED", "PROMPT", promptCol)
	for _, r := range runs {
		printRow(r.ID, r.Status, strconv.Itoa(r.Iterations), r.StartedAt.Format("2006-01-02 15:04"), truncateDisplay(r.BasePrompt, promptCol), promptCol)
	}
}

func runHistoryShow(id string) {
	s, err := store.Open("nerovaagent.db")
	if err != nil {
		fmt.Fprintln(os.Stderr, "history: open run index:", err)
		os.Exit(1)
	}
	defer s.Close()

	r, err := s.Get(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history: run not found:", err)
		os.Exit(1)
	}

	fmt.Printf("Run:          %s\n", r.ID)
	fmt.Printf("Status:       %s\n", r.Status)
	fmt.Printf("Iterations:   %d\n", r.Iterations)
	fmt.Printf("Started:      %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	if !r.FinishedAt.IsZero() {
		fmt.Printf("Finished:     %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Artifacts:    %s\n", r.ArtifactDir)
	fmt.Printf("Prompt:       %s\n", r.BasePrompt)
	if r.ErrorMessage != "" {
		fmt.Printf("Error:        %s\n", r.ErrorMessage)
	}
}

// printRow pads each column to a fixed display width using runewidth,
// since run IDs and status strings are ASCII but prompts may carry wide
// (CJK) characters that len() would misjudge.
func printRow(id, status, steps, started, prompt string, promptCol int) {
	fmt.Printf("%s  %s  %s  %s  %s\n",
		padDisplay(id, 36),
		padDisplay(status, 16),
		padDisplay(steps, 5),
		padDisplay(started, 16),
		padDisplay(prompt, promptCol),
	)
}

func padDisplay(s string, width int) string {
	return s + spaces(width-runewidth.StringWidth(s))
}

func truncateDisplay(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width-1, "…")
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
