package runstate

import "testing"

func TestNewRunCarriesInitialContexts(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", []string{"depart from SFO"})
	if !run.ContextActive() {
		t.Fatal("ContextActive() = false, want true with one initial context")
	}
	if got := run.ContextStep(); got != 1 {
		t.Fatalf("ContextStep() = %d, want 1", got)
	}
	if got := run.Contexts(); len(got) != 1 || got[0] != "depart from SFO" {
		t.Fatalf("Contexts() = %v", got)
	}
}

func TestAppendContextAccumulates(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", nil)
	if run.ContextActive() {
		t.Fatal("ContextActive() = true before any context queued")
	}

	run.AppendContext("depart from SFO")
	run.AppendContext("window seat")

	if !run.ContextActive() {
		t.Fatal("ContextActive() = false after AppendContext")
	}
	if got := run.ContextStep(); got != 2 {
		t.Fatalf("ContextStep() = %d, want 2", got)
	}
	want := []string{"depart from SFO", "window seat"}
	got := run.Contexts()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Contexts() = %v, want %v", got, want)
	}
}

func TestReplaceOverrideContextDropsPriorOverridesButKeepsInitial(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", []string{"depart from SFO"})
	run.AppendContext("window seat")
	run.AppendContext("aisle seat")

	run.ReplaceOverrideContext(1, "nonstop only")

	got := run.Contexts()
	want := []string{"depart from SFO", "nonstop only"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Contexts() after replace = %v, want %v", got, want)
	}
}

func TestContextsReturnsACopy(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", []string{"depart from SFO"})
	got := run.Contexts()
	got[0] = "mutated"

	if fresh := run.Contexts()[0]; fresh != "depart from SFO" {
		t.Fatalf("Contexts() = %q after external mutation, want original value unaffected", fresh)
	}
}

func TestMergeCompleteHistoryAndCompleteHistoryReturnsACopy(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", nil)
	run.MergeCompleteHistory(func(h []string) []string { return append(h, "opened airline site") })

	got := run.CompleteHistory()
	if len(got) != 1 || got[0] != "opened airline site" {
		t.Fatalf("CompleteHistory() = %v", got)
	}

	got[0] = "mutated"
	if fresh := run.CompleteHistory()[0]; fresh != "opened airline site" {
		t.Fatalf("CompleteHistory() = %q after external mutation, want original value unaffected", fresh)
	}
}

func TestFinalizeAndSummary(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", nil)
	run.IncrementIteration()
	run.IncrementIteration()
	run.MergeCompleteHistory(func(h []string) []string { return append(h, "opened airline site") })

	run.Finalize(StatusStop, "")

	summary := run.Summary()
	if summary.RunID != "r1" {
		t.Fatalf("RunID = %q, want r1", summary.RunID)
	}
	if summary.Status != StatusStop {
		t.Fatalf("Status = %q, want %q", summary.Status, StatusStop)
	}
	if summary.Iterations != 2 {
		t.Fatalf("Iterations = %d, want 2", summary.Iterations)
	}
	if summary.FinishedAt.IsZero() {
		t.Fatal("FinishedAt is zero after Finalize")
	}
	if len(summary.CompleteHistory) != 1 || summary.CompleteHistory[0] != "opened airline site" {
		t.Fatalf("CompleteHistory = %v", summary.CompleteHistory)
	}
	if summary.ErrorMessage != "" {
		t.Fatalf("ErrorMessage = %q, want empty", summary.ErrorMessage)
	}
}

func TestFinalizeRecordsErrorMessage(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/r1", nil)
	run.Finalize(StatusError, "critic unavailable")

	summary := run.Summary()
	if summary.Status != StatusError {
		t.Fatalf("Status = %q, want %q", summary.Status, StatusError)
	}
	if summary.ErrorMessage != "critic unavailable" {
		t.Fatalf("ErrorMessage = %q, want %q", summary.ErrorMessage, "critic unavailable")
	}
}

func TestTerminalLine(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		iters  int
		want   string
	}{
		{"stop reports iteration count", StatusStop, 3, "[nerovaagent] run completed after 3 iterations"},
		{"halt reports status", StatusHalt, 1, "[nerovaagent] run finished with status halt"},
		{"aborted reports status", StatusAborted, 0, "[nerovaagent] run finished with status aborted"},
		{"await_assistance reports status", StatusAwaitAssist, 2, "[nerovaagent] run finished with status await_assistance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := New("r1", "book a flight", "/tmp/r1", nil)
			for i := 0; i < tt.iters; i++ {
				run.IncrementIteration()
			}
			run.Finalize(tt.status, "")

			if got := run.TerminalLine(); got != tt.want {
				t.Fatalf("TerminalLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArtifactDir(t *testing.T) {
	run := New("r1", "book a flight", "/tmp/artifacts/r1", nil)
	if got := run.ArtifactDir(); got != "/tmp/artifacts/r1" {
		t.Fatalf("ArtifactDir() = %q, want /tmp/artifacts/r1", got)
	}
}
