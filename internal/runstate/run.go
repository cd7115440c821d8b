// Package runstate holds the per-run data model (spec.md §3): Run, Session,
// and the pause/resume/abort Supervisor, plus effective-prompt assembly.
package runstate

import (
	"fmt"
	"sync"
	"time"
)

// Status is a Run's terminal or in-flight state (spec.md §3).
type Status string

const (
	StatusInProgress     Status = "in_progress"
	StatusStop           Status = "stop"
	StatusResend         Status = "resend"
	StatusContinue       Status = "continue"
	StatusAwaitAssist    Status = "await_assistance"
	StatusHalt           Status = "halt"
	StatusAborted        Status = "aborted"
	StatusError          Status = "error"
)

// Run is a single goal-pursuing execution.
type Run struct {
	ID         string
	BasePrompt string

	mu              sync.Mutex
	contexts        []string // initial + mid-run override contexts, in order
	completeHistory []string
	iterations      int
	status          Status
	artifactDir     string
	errorMessage    string
	startedAt       time.Time
	finishedAt      time.Time
}

// New creates a Run in StatusInProgress. prompt must be non-empty trimmed
// text; callers validate with nerovaerr.CodePromptRequired before calling.
func New(id, prompt, artifactDir string, initialContexts []string) *Run {
	return &Run{
		ID:          id,
		BasePrompt:  prompt,
		contexts:    append([]string(nil), initialContexts...),
		status:      StatusInProgress,
		artifactDir: artifactDir,
		startedAt:   time.Now(),
	}
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

func (r *Run) Iterations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iterations
}

// IncrementIteration advances the hard step counter. The loop calls it at
// the start of every pass; resend and pause-replay passes undo it with
// DecrementIteration so they do not advance the count (spec.md §4.1
// terminate / §5 pause barrier).
func (r *Run) IncrementIteration() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterations++
	return r.iterations
}

// DecrementIteration undoes one IncrementIteration — used when a pause
// barrier replays the current step so the resumed attempt occupies the
// same step number (spec.md §5).
func (r *Run) DecrementIteration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.iterations > 0 {
		r.iterations--
	}
}

// CompleteHistory returns a copy of the run's deduplicated milestone list.
func (r *Run) CompleteHistory() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.completeHistory...)
}

// MergeCompleteHistory folds newItems into the run's history using the
// same normalize-dedup-append-in-first-seen-order rule as
// decision.ExtractCompletes (spec.md §8 invariant 1); it is the run-level
// home for that pure function.
func (r *Run) MergeCompleteHistory(merge func(history []string) []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeHistory = merge(r.completeHistory)
}

// ArtifactDir is the per-run directory under which journal files live.
func (r *Run) ArtifactDir() string { return r.artifactDir }

// AppendContext adds text to the end of the override-context slot (spec.md
// §4.1 step 3a: a queued context, once dequeued, joins the effective
// prompt for every subsequent iteration until replaced).
func (r *Run) AppendContext(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts = append(r.contexts, text)
}

// ReplaceOverrideContext drops every context after the base prompt's
// initial set and appends text in their place — the "new_context"
// decision field steers the slot this way rather than accumulating
// (spec.md §4.1 step 3c), while "keep" leaves the existing slot alone.
func (r *Run) ReplaceOverrideContext(initialCount int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if initialCount > len(r.contexts) {
		initialCount = len(r.contexts)
	}
	r.contexts = append(r.contexts[:initialCount], text)
}

// Contexts returns a copy of the current override-context slot, for
// PromptAssembler.Effective to render into the step's effective prompt.
func (r *Run) Contexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.contexts...)
}

// ContextActive reports whether an override context is currently queued
// on top of the base prompt (userPayload.context.context_active, spec.md
// §4.4).
func (r *Run) ContextActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts) > 0
}

// ContextStep returns how many override-context entries are active
// (userPayload.context.context_step, spec.md §4.4).
func (r *Run) ContextStep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Finalize sets the terminal status, records an optional error message, and
// stamps FinishedAt. A Run must be finalized in exactly one terminal state
// (spec.md §3).
func (r *Run) Finalize(status Status, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.errorMessage = errMsg
	r.finishedAt = time.Now()
}

// Summary is the shape written to summary.json (spec.md §4.5/§7).
type Summary struct {
	RunID           string    `json:"runId"`
	Status          Status    `json:"status"`
	Iterations      int       `json:"iterations"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	CompleteHistory []string  `json:"completeHistory"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		RunID:           r.ID,
		Status:          r.status,
		Iterations:      r.iterations,
		StartedAt:       r.startedAt,
		FinishedAt:      r.finishedAt,
		CompleteHistory: append([]string(nil), r.completeHistory...),
		ErrorMessage:    r.errorMessage,
	}
}

// TerminalLine renders the log line spec.md §7 specifies for a finished
// run: "run finished with status <S>" / "run completed after <N> iterations".
func (r *Run) TerminalLine() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusStop {
		return fmt.Sprintf("[nerovaagent] run completed after %d iterations", r.iterations)
	}
	return fmt.Sprintf("[nerovaagent] run finished with status %s", r.status)
}
