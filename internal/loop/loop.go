// Package loop implements the Control Loop (spec.md §4.1): Init, Bootstrap,
// Iteration, and Terminate phases that drive one prompt to a terminal Run
// status, generalizing the teacher's internal/agent.Loop Think→Act→Observe
// cycle (single long-lived struct, per-run context, onEvent callback) to the
// Bootstrap→Critic→Act cycle this system requires.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerovaautomation/nerovaagent/internal/controlplane"
	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/imgutil"
	"github.com/nerovaautomation/nerovaagent/internal/journal"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/obs"
	"github.com/nerovaautomation/nerovaagent/internal/resolver"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
	"github.com/nerovaautomation/nerovaagent/internal/store"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

// Driver is everything the Control Loop needs from a Remote Browser Driver
// connection beyond what resolver.Driver already covers — satisfied by both
// *internal/driver.AgentDriver (over the wire) and
// *internal/browserworker.Worker (in-process), spec.md §9's "wire shape is
// the only contract".
type Driver interface {
	resolver.Driver
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	ScrollUniversal(ctx context.Context, direction string, deltaPx int) error
}

// CriticCaller is the subset of *internal/llmclient.Client the loop needs
// for Critic/Bootstrap calls.
type CriticCaller interface {
	CallCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, screenshotPNG []byte, planWindow *llmclient.PlanWindow) (*llmclient.CriticResult, error)
	CallBootstrapCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, screenshotPNG []byte) (*llmclient.CriticResult, error)
}

// AssistantCaller is the subset needed for Assistant disambiguation calls.
type AssistantCaller interface {
	CallAssistant(ctx context.Context, model, assistantID, apiKey string, payload llmclient.AssistantPayload, screenshotPNG []byte, pollTimeout time.Duration) (*llmclient.AssistantResult, error)
}

// EventPublisher fans a run event out to control-plane subscribers —
// satisfied by *internal/controlplane.Server.
type EventPublisher interface {
	Publish(runID string, event controlplane.Event)
}

// Config wires together everything one Loop needs for every run it drives.
// Store, Registry, and Publisher are optional: a nil value simply disables
// that side effect, which keeps the loop usable in tests without a SQLite
// file or a running control-plane server.
type Config struct {
	Driver    Driver
	Critic    CriticCaller
	Assistant AssistantCaller

	ArtifactsRoot string
	Store         *store.Store
	Registry      *controlplane.Registry
	Publisher     EventPublisher
	Logger        *slog.Logger
	Tracer        obs.Tracer // nil disables tracing spans; see internal/obs

	CriticModel    string
	CriticKey      string
	AssistantModel string
	AssistantID    string
	AssistantKey   string

	MaxSteps         int
	BootURL          string
	DevicePixelRatio float64 // spec.md §4.2 step 1; fixed per process absent a driver DPR query (see DESIGN.md)
	ViewportHeightPx int     // used to size scroll deltas when the Critic gives no explicit amount (spec.md §4.1 "scroll")
	PollTimeout      time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	if cfg.DevicePixelRatio <= 0 {
		cfg.DevicePixelRatio = 1
	}
	if cfg.ViewportHeightPx <= 0 {
		cfg.ViewportHeightPx = 900
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = obs.NewNoop()
	}
	return cfg
}

// Loop drives runs against one configured Driver/Critic/Assistant triple.
// A single Loop is shared across concurrently active runs — per-run state
// lives in runstate.Run/Supervisor, not here.
type Loop struct {
	cfg Config
}

func New(cfg Config) *Loop {
	return &Loop{cfg: cfg.withDefaults()}
}

// RunRequest is one call to Run: a prompt plus the per-run overrides a
// caller (HTTP handler or CLI) may supply over the Loop's defaults.
type RunRequest struct {
	Prompt       string
	ContextNotes string
	MaxSteps     int
	BootURL      string
	CriticKey    string
	AssistantKey string
	AssistantID  string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Run executes the full Control Loop for one prompt: Init, Bootstrap,
// Iteration, Terminate (spec.md §4.1). It returns once the run reaches a
// terminal status; the run's full history lives in its journal directory.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*runstate.Summary, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, nerovaerr.New(nerovaerr.CodePromptRequired, "prompt must not be empty")
	}

	runID := uuid.NewString()
	artifactDir := filepath.Join(l.cfg.ArtifactsRoot, runID)

	var initialContexts []string
	if notes := strings.TrimSpace(req.ContextNotes); notes != "" {
		initialContexts = []string{notes}
	}
	ctx, runSpan := l.cfg.Tracer.StartRun(ctx, runID, prompt)
	defer runSpan.End()
	finalize := func(e *execution, status runstate.Status, runErr error) (*runstate.Summary, error) {
		runSpan.SetError(runErr)
		return l.finalize(e, status, runErr)
	}

	run := runstate.New(runID, prompt, artifactDir, initialContexts)
	sup := runstate.NewSupervisor(ctx)

	j, err := journal.New(artifactDir)
	if err != nil {
		return nil, fmt.Errorf("loop: open journal for run %s: %w", runID, err)
	}
	defer j.Close()

	if l.cfg.Registry != nil {
		l.cfg.Registry.Register(runID, &controlplane.Handle{Run: run, Supervisor: sup})
		defer l.cfg.Registry.Unregister(runID)
	}

	e := &execution{
		l:                   l,
		run:                 run,
		sup:                 sup,
		journal:             j,
		promptAsm:           runstate.NewPromptAssembler(prompt, l.cfg.Logger),
		session:             runstate.NewSession(uuid.NewString()),
		initialContextCount: len(initialContexts),
		maxSteps:            l.cfg.MaxSteps,
		criticModel:         l.cfg.CriticModel,
		assistantModel:      l.cfg.AssistantModel,
	}
	if req.MaxSteps > 0 {
		e.maxSteps = req.MaxSteps
	}

	e.criticKey, err = llmclient.ResolveCriticKey(firstNonEmpty(req.CriticKey, l.cfg.CriticKey))
	if err != nil {
		return finalize(e, runstate.StatusError, err)
	}
	e.assistantKey, err = llmclient.ResolveAssistantKey(firstNonEmpty(req.AssistantKey, l.cfg.AssistantKey))
	if err != nil {
		return finalize(e, runstate.StatusError, err)
	}
	e.assistantID = firstNonEmpty(req.AssistantID, l.cfg.AssistantID)
	e.assistant = &llmAssistant{
		caller:      l.cfg.Assistant,
		model:       e.assistantModel,
		assistantID: e.assistantID,
		apiKey:      e.assistantKey,
		pollTimeout: l.cfg.PollTimeout,
	}

	j.WriteMeta(map[string]any{
		"runId":      runID,
		"basePrompt": prompt,
		"startedAt":  run.Summary().StartedAt,
	})
	j.LogLine("run started: " + prompt)
	l.emit(runID, protocol.RunEventStarted, nil)

	bootURL := firstNonEmpty(req.BootURL, l.cfg.BootURL)
	if bootURL != "" {
		if err := l.cfg.Driver.Navigate(sup.Token(), bootURL); err != nil {
			return finalize(e, runstate.StatusError, nerovaerr.Wrap(nerovaerr.CodeScreenshotFailed, "boot navigate", err))
		}
		e.session.SetCurrentURL(bootURL)
	}

	if err := e.runBootstrap(ctx); err != nil {
		status := runstate.StatusError
		if errors.Is(err, runstate.ErrRunAborted) {
			status = runstate.StatusAborted
		}
		return finalize(e, status, err)
	}

	status, runErr := e.runIterations(ctx)
	return finalize(e, status, runErr)
}

// finalize writes summary.json, updates the run index, unregisters the run
// from the control plane (via the caller's deferred Unregister), and
// returns the terminal Summary (spec.md §4.1 Terminate phase).
func (l *Loop) finalize(e *execution, status runstate.Status, runErr error) (*runstate.Summary, error) {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	e.run.Finalize(status, errMsg)
	summary := e.run.Summary()

	e.journal.WriteSummary(summary)
	e.journal.LogLine(e.run.TerminalLine())

	if l.cfg.Store != nil {
		l.cfg.Store.UpsertRun(store.RunIndexEntry{
			ID:           summary.RunID,
			BasePrompt:   e.run.BasePrompt,
			Status:       string(summary.Status),
			Iterations:   summary.Iterations,
			StartedAt:    summary.StartedAt,
			FinishedAt:   summary.FinishedAt,
			ArtifactDir:  e.run.ArtifactDir(),
			ErrorMessage: summary.ErrorMessage,
		})
	}

	l.emit(summary.RunID, terminalEventFor(status), map[string]any{"status": status, "errorMessage": errMsg})

	if runErr != nil {
		return &summary, runErr
	}
	return &summary, nil
}

func terminalEventFor(status runstate.Status) string {
	switch status {
	case runstate.StatusStop:
		return protocol.RunEventCompleted
	case runstate.StatusAborted:
		return protocol.RunEventAborted
	case runstate.StatusError, runstate.StatusHalt:
		return protocol.RunEventFailed
	default:
		return protocol.RunEventFailed
	}
}

// emit publishes a run event if a Publisher is configured; it is a no-op
// otherwise so Run works standalone in tests.
func (l *Loop) emit(runID, eventType string, payload map[string]any) {
	if l.cfg.Publisher == nil {
		return
	}
	body := map[string]any{"type": eventType}
	for k, v := range payload {
		body[k] = v
	}
	l.cfg.Publisher.Publish(runID, controlplane.Event{Event: protocol.EventRun, RunID: runID, Payload: body})
}

// llmAssistant adapts llmclient's Assistant call to the resolver.Assistant
// interface the Click Resolver depends on (spec.md §4.2 steps 7/8),
// translating resolver.Hittable candidates to the wire CandidateView shape
// so resolver never has to import llmclient. Screenshots passed through
// here are downscaled for the Assistant's image-input limit (SPEC_FULL
// §4.2); the Critic path in execution never calls this.
type llmAssistant struct {
	caller      AssistantCaller
	model       string
	assistantID string
	apiKey      string
	pollTimeout time.Duration
}

func (a *llmAssistant) DisambiguateClick(ctx context.Context, goal string, target *decision.Target, candidates []resolver.Hittable, screenshotPNG []byte) (*resolver.AssistantResult, error) {
	views := make([]llmclient.CandidateView, len(candidates))
	for i, c := range candidates {
		views[i] = llmclient.CandidateView{ID: c.ID, Name: c.Name, Role: c.Role, Center: c.Center}
	}

	shot, err := imgutil.DownscaleForAssistant(screenshotPNG)
	if err != nil {
		shot = screenshotPNG // downscale is best-effort; the full-size original still beats none
	}

	payload := llmclient.AssistantPayload{Goal: goal, Target: target, Candidates: views}
	result, err := a.caller.CallAssistant(ctx, a.model, a.assistantID, a.apiKey, payload, shot, a.pollTimeout)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &resolver.AssistantResult{
		Action:      result.Action,
		CandidateID: result.CandidateID,
		Center:      result.Center,
		Confidence:  result.Confidence,
	}, nil
}
