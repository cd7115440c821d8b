// Package journal writes the per-run artifact tree spec.md §4.5 specifies:
// meta.json, summary.json, run.log, workflow.log, and zero-padded per-step
// artifacts. It is the filesystem analogue of the teacher's
// internal/agent/loop_tracing.go span collector (tracing.Collector,
// store.SpanData) — same "record what happened during a run" concern,
// generalized from DB-backed spans to a flat file tree since spec.md §6
// specifies a directory per run, not a database, for this component.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal owns one run's artifact directory. Not safe to share across
// goroutines except through its own locked methods.
type Journal struct {
	dir string
	mu  sync.Mutex

	runLog      *os.File
	workflowLog *os.File
}

// New creates dir (and any missing parents) and opens run.log/workflow.log
// for appending.
func New(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	runLog, err := os.OpenFile(filepath.Join(dir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open run.log: %w", err)
	}
	workflowLog, err := os.OpenFile(filepath.Join(dir, "workflow.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		runLog.Close()
		return nil, fmt.Errorf("journal: open workflow.log: %w", err)
	}
	return &Journal{dir: dir, runLog: runLog, workflowLog: workflowLog}, nil
}

// Close flushes and closes the log files. meta.json/summary.json are
// written synchronously via WriteMeta/WriteSummary and need no close.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err1 := j.runLog.Close()
	err2 := j.workflowLog.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Dir returns the run's artifact directory.
func (j *Journal) Dir() string { return j.dir }

// LogLine appends one line to run.log, prefixed with an ISO-8601 timestamp
// (spec.md §4.5 "line-per-event with ISO timestamp").
func (j *Journal) LogLine(msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := fmt.Fprintf(j.runLog, "%s %s\n", time.Now().UTC().Format(time.RFC3339Nano), msg)
	return err
}

// LogStage appends one JSON object to workflow.log, keyed by stage
// (spec.md §4.5 "one JSON object per line keyed by stage").
func (j *Journal) LogStage(stage string, fields map[string]any) error {
	record := map[string]any{"stage": stage, "ts": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range fields {
		record[k] = v
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = fmt.Fprintln(j.workflowLog, string(data))
	return err
}

// WriteMeta writes meta.json (spec.md §4.5), overwriting any prior copy.
func (j *Journal) WriteMeta(v any) error {
	return j.writeJSONFile("meta.json", v)
}

// WriteSummary writes summary.json (spec.md §4.5), overwriting any prior
// copy — called once, at run termination.
func (j *Journal) WriteSummary(v any) error {
	return j.writeJSONFile("summary.json", v)
}

func (j *Journal) writeJSONFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(j.dir, name), data, 0o644)
}

// stepFilename builds the "NN_name" prefix spec.md §4.5 requires, e.g.
// "03_critic-input.json" or "03_critic.png".
func stepFilename(step int, name string) string {
	return fmt.Sprintf("%02d_%s", step, name)
}

// WriteStepArtifact writes raw bytes (e.g. a PNG screenshot) to a
// zero-padded per-step artifact file.
func (j *Journal) WriteStepArtifact(step int, name string, data []byte) error {
	return os.WriteFile(filepath.Join(j.dir, stepFilename(step, name)), data, 0o644)
}

// WriteStepJSON marshals v, redacts anything that looks like an API key
// (spec.md §4.5 "API keys are replaced with *** before persisting"), and
// writes it to a zero-padded per-step JSON artifact file.
func (j *Journal) WriteStepJSON(step int, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	redacted, err := RedactJSON(data)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(j.dir, stepFilename(step, name)+".json"), redacted, 0o644)
}
