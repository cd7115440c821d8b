package loop

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/controlplane"
	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/resolver"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
)

// fakeDriver is a hand-written stand-in for *internal/driver.AgentDriver /
// *internal/browserworker.Worker, in the style of resolver's own
// fakeDriver: plain field-recording, no mocking library.
type fakeDriver struct {
	screenshot []byte
	hittables  []resolver.Hittable

	navigated []string
	backs     int
	scrolls   []string
	clicks    [][2]float64
	cleared   bool
	typed     []rune
	entered   bool
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}
func (f *fakeDriver) GoBack(ctx context.Context) error { f.backs++; return nil }
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if f.screenshot == nil {
		return []byte("fake-png"), nil
	}
	return f.screenshot, nil
}
func (f *fakeDriver) ScrollUniversal(ctx context.Context, direction string, deltaPx int) error {
	f.scrolls = append(f.scrolls, direction)
	return nil
}
func (f *fakeDriver) Hittables(ctx context.Context) ([]resolver.Hittable, error) { return f.hittables, nil }
func (f *fakeDriver) ClickViewport(ctx context.Context, vx, vy float64) error {
	f.clicks = append(f.clicks, [2]float64{vx, vy})
	return nil
}
func (f *fakeDriver) ClearActiveInput(ctx context.Context) error { f.cleared = true; return nil }
func (f *fakeDriver) TypeChar(ctx context.Context, ch rune) error {
	f.typed = append(f.typed, ch)
	return nil
}
func (f *fakeDriver) PressEnter(ctx context.Context) error { f.entered = true; return nil }

// fakeCritic serves a fixed queue of bootstrap decisions and a fixed queue
// of iteration decisions, in order, for tests that drive a whole Run.
type fakeCritic struct {
	bootstrap []*decision.Decision
	iteration []*decision.Decision

	bootstrapCalls int
	iterationCalls int
}

func (c *fakeCritic) CallBootstrapCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte) (*llmclient.CriticResult, error) {
	i := c.bootstrapCalls
	c.bootstrapCalls++
	if i >= len(c.bootstrap) {
		return &llmclient.CriticResult{Decision: &decision.Decision{Action: "proceed"}}, nil
	}
	return &llmclient.CriticResult{Decision: c.bootstrap[i]}, nil
}

func (c *fakeCritic) CallCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte, pw *llmclient.PlanWindow) (*llmclient.CriticResult, error) {
	i := c.iterationCalls
	c.iterationCalls++
	if i >= len(c.iteration) {
		return &llmclient.CriticResult{Decision: &decision.Decision{Action: decision.ActionStop, Known: true}}, nil
	}
	return &llmclient.CriticResult{Decision: c.iteration[i]}, nil
}

// fakeAssistantCaller serves a fixed queue of Assistant responses.
type fakeAssistantCaller struct {
	results []*llmclient.AssistantResult
	calls   int
}

func (a *fakeAssistantCaller) CallAssistant(ctx context.Context, model, assistantID, apiKey string, payload llmclient.AssistantPayload, shot []byte, pollTimeout time.Duration) (*llmclient.AssistantResult, error) {
	i := a.calls
	a.calls++
	if i >= len(a.results) {
		return &llmclient.AssistantResult{Action: "unknown"}, nil
	}
	return a.results[i], nil
}

func newTestLoop(t *testing.T, driver *fakeDriver, critic *fakeCritic, assistant *fakeAssistantCaller) *Loop {
	t.Helper()
	return New(Config{
		Driver:        driver,
		Critic:        critic,
		Assistant:     assistant,
		ArtifactsRoot: t.TempDir(),
		CriticKey:     "critic-key",
		AssistantKey:  "assistant-key",
	})
}

func TestBootstrapNavigateThenStop(t *testing.T) {
	driver := &fakeDriver{}
	critic := &fakeCritic{
		bootstrap: []*decision.Decision{
			{Action: decision.ActionNavigate, URL: "https://example.com", Complete: []string{"opened https://example.com"}},
		},
	}
	l := newTestLoop(t, driver, critic, &fakeAssistantCaller{})

	summary, err := l.Run(context.Background(), RunRequest{Prompt: "go to example.com"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != runstate.StatusStop {
		t.Fatalf("status = %v, want stop", summary.Status)
	}
	if len(driver.navigated) != 1 || driver.navigated[0] != "https://example.com" {
		t.Fatalf("navigated = %v, want exactly one navigate to example.com", driver.navigated)
	}
	if len(summary.CompleteHistory) != 1 || summary.CompleteHistory[0] != "opened https://example.com" {
		t.Fatalf("completeHistory = %v", summary.CompleteHistory)
	}
}

func TestResendDoesNotAdvanceIterationCounter(t *testing.T) {
	driver := &fakeDriver{}
	critic := &fakeCritic{
		iteration: []*decision.Decision{
			{Action: decision.ActionResend, Known: true},
			{Action: decision.ActionResend, Known: true},
		},
	}
	l := newTestLoop(t, driver, critic, &fakeAssistantCaller{})

	summary, err := l.Run(context.Background(), RunRequest{Prompt: "wait for the page to load"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != runstate.StatusStop {
		t.Fatalf("status = %v, want stop", summary.Status)
	}
	if summary.Iterations != 1 {
		t.Fatalf("iterations = %d, want 1 (resends must not advance the counter)", summary.Iterations)
	}
}

func TestExactMatchClickNoAssistantCall(t *testing.T) {
	driver := &fakeDriver{
		hittables: []resolver.Hittable{
			{ID: "button-3", Name: "Add to cart", Role: "button", Center: [2]float64{640, 420}, HitState: resolver.HitStateHittable},
		},
	}
	assistant := &fakeAssistantCaller{}
	critic := &fakeCritic{
		iteration: []*decision.Decision{
			{
				Action: decision.ActionClick, Known: true,
				Target: &decision.Target{
					Center: []float64{638, 418},
					Hints:  decision.Hints{TextExact: []string{"Add to cart"}, Roles: []string{"button"}},
				},
			},
		},
	}
	l := newTestLoop(t, driver, critic, assistant)

	summary, err := l.Run(context.Background(), RunRequest{Prompt: "add the item to the cart"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != runstate.StatusStop {
		t.Fatalf("status = %v, want stop", summary.Status)
	}
	if len(driver.clicks) != 1 || driver.clicks[0] != [2]float64{640, 420} {
		t.Fatalf("clicks = %v, want exactly one at (640,420)", driver.clicks)
	}
	if assistant.calls != 0 {
		t.Fatalf("assistant.calls = %d, want 0 when an exact match exists", assistant.calls)
	}
}

func TestAssistantFallbackAccept(t *testing.T) {
	driver := &fakeDriver{
		hittables: []resolver.Hittable{
			{ID: "link-1", Name: "Continue", Role: "link", Center: [2]float64{312, 540}, HitState: resolver.HitStateHittable},
		},
	}
	assistant := &fakeAssistantCaller{
		results: []*llmclient.AssistantResult{{Action: "click", CandidateID: "link-1", Center: [2]float64{312, 540}, Confidence: 0.74}},
	}
	critic := &fakeCritic{
		iteration: []*decision.Decision{
			{Action: decision.ActionAccept, Known: true, Target: &decision.Target{Hints: decision.Hints{TextExact: []string{"nonexistent"}}}},
		},
	}
	l := newTestLoop(t, driver, critic, assistant)

	summary, err := l.Run(context.Background(), RunRequest{Prompt: "continue checkout"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != runstate.StatusStop {
		t.Fatalf("status = %v, want stop", summary.Status)
	}
	if len(driver.clicks) != 1 || driver.clicks[0] != [2]float64{312, 540} {
		t.Fatalf("clicks = %v, want exactly one at (312,540)", driver.clicks)
	}
}

func TestAssistantLowConfidenceHaltsAwaitAssistance(t *testing.T) {
	driver := &fakeDriver{
		hittables: []resolver.Hittable{
			{ID: "x", Name: "Something", Role: "button", Center: [2]float64{10, 10}, HitState: resolver.HitStateHittable},
		},
	}
	assistant := &fakeAssistantCaller{
		results: []*llmclient.AssistantResult{{Action: "click", Confidence: 0.4}},
	}
	critic := &fakeCritic{
		iteration: []*decision.Decision{
			{Action: decision.ActionClick, Known: true, Target: &decision.Target{Hints: decision.Hints{TextExact: []string{"nope"}}}},
		},
	}
	l := newTestLoop(t, driver, critic, assistant)

	summary, err := l.Run(context.Background(), RunRequest{Prompt: "click the confusing thing"})
	if err == nil {
		t.Fatal("expected a non-nil error for an await_assistance terminal run")
	}
	if summary.Status != runstate.StatusAwaitAssist {
		t.Fatalf("status = %v, want await_assistance", summary.Status)
	}
	if len(driver.clicks) != 0 {
		t.Fatalf("clicks = %v, want none issued", driver.clicks)
	}
}

// pauseCritic blocks its first CallCritic call on ctx.Done(), so a test can
// drive a real RequestPause/SupplyContext cycle against a live run.
type pauseCritic struct {
	calls         int
	reached       chan struct{}
	promptOnCall2 string
}

func (c *pauseCritic) CallBootstrapCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte) (*llmclient.CriticResult, error) {
	return &llmclient.CriticResult{Decision: &decision.Decision{Action: "proceed"}}, nil
}

func (c *pauseCritic) CallCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte, pw *llmclient.PlanWindow) (*llmclient.CriticResult, error) {
	c.calls++
	if c.calls == 1 {
		close(c.reached)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c.promptOnCall2 = payload.Goal.OriginalPrompt
	return &llmclient.CriticResult{Decision: &decision.Decision{Action: decision.ActionStop, Known: true}}, nil
}

func TestPauseThenContextResumesWithoutAdvancingStepCounter(t *testing.T) {
	driver := &fakeDriver{}
	critic := &pauseCritic{reached: make(chan struct{})}
	registry := controlplane.NewRegistry()
	l := New(Config{
		Driver:        driver,
		Critic:        critic,
		Assistant:     &fakeAssistantCaller{},
		ArtifactsRoot: t.TempDir(),
		Registry:      registry,
		CriticKey:     "critic-key",
		AssistantKey:  "assistant-key",
	})

	type outcome struct {
		summary *runstate.Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := l.Run(context.Background(), RunRequest{Prompt: "find the search box"})
		done <- outcome{summary, err}
	}()

	<-critic.reached

	var handle *controlplane.Handle
	deadline := time.Now().Add(2 * time.Second)
	for handle == nil && time.Now().Before(deadline) {
		for _, id := range registry.Snapshot() {
			if h, err := registry.Get(id); err == nil {
				handle = h
			}
		}
		if handle == nil {
			time.Sleep(time.Millisecond)
		}
	}
	if handle == nil {
		t.Fatal("run never registered a handle")
	}

	stepAtBarrier := handle.Run.Iterations()
	handle.Supervisor.RequestPause()

	barrierDeadline := time.Now().Add(2 * time.Second)
	for !handle.Supervisor.PauseRequested() && time.Now().Before(barrierDeadline) {
		time.Sleep(time.Millisecond)
	}
	handle.Supervisor.SupplyContext("focus on the search box")

	out := <-done
	if out.err != nil {
		t.Fatalf("Run: %v", out.err)
	}
	if out.summary.Status != runstate.StatusStop {
		t.Fatalf("status = %v, want stop", out.summary.Status)
	}
	if out.summary.Iterations != stepAtBarrier {
		t.Fatalf("iterations after resume = %d, want %d (unchanged across the barrier)", out.summary.Iterations, stepAtBarrier)
	}
	if !strings.HasSuffix(critic.promptOnCall2, "Context:\nfocus on the search box") {
		t.Fatalf("resumed prompt = %q, want it to end with the supplied context", critic.promptOnCall2)
	}
}
