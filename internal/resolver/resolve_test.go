package resolver

import (
	"context"
	"testing"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
)

type fakeDriver struct {
	hittables []Hittable
	clicks    [][2]float64
	cleared   bool
	typed     []rune
	entered   bool
}

func (f *fakeDriver) Hittables(ctx context.Context) ([]Hittable, error) { return f.hittables, nil }
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

type fakeAssistant struct {
	result *AssistantResult
	err    error
	called bool
}

func (f *fakeAssistant) DisambiguateClick(ctx context.Context, goal string, target *decision.Target, candidates []Hittable, screenshotPNG []byte) (*AssistantResult, error) {
	f.called = true
	return f.result, f.err
}

func TestExactMatchClicksWithoutAssistant(t *testing.T) {
	driver := &fakeDriver{hittables: []Hittable{
		{ID: "button-3", Name: "Add to cart", Role: "button", Center: [2]float64{640, 420}, Rect: [4]float64{600, 400, 80, 40}, HitState: HitStateHittable},
	}}
	assistant := &fakeAssistant{}
	target := &decision.Target{
		Center: []float64{638, 418},
		Hints:  decision.Hints{TextExact: []string{"Add to cart"}, Roles: []string{"button"}},
	}

	res, err := Resolve(context.Background(), target, 1, driver, assistant, "buy the thing", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeClicked {
		t.Fatalf("outcome = %v, want clicked", res.Outcome)
	}
	if len(driver.clicks) != 1 || driver.clicks[0] != [2]float64{640, 420} {
		t.Fatalf("clicks = %v, want exactly one at (640,420)", driver.clicks)
	}
	if assistant.called {
		t.Fatal("assistant should not be called when an exact match exists")
	}
}

func TestAssistantFallbackAccept(t *testing.T) {
	driver := &fakeDriver{hittables: []Hittable{
		{ID: "link-1", Name: "Continue", Role: "link", Center: [2]float64{312, 540}, HitState: HitStateHittable},
	}}
	assistant := &fakeAssistant{result: &AssistantResult{Action: "click", CandidateID: "link-1", Center: [2]float64{312, 540}, Confidence: 0.74}}
	target := &decision.Target{Hints: decision.Hints{TextExact: []string{"nonexistent"}}}

	res, err := Resolve(context.Background(), target, 1, driver, assistant, "continue", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeClicked || driver.clicks[0] != [2]float64{312, 540} {
		t.Fatalf("got %+v, clicks=%v", res, driver.clicks)
	}
}

func TestAssistantLowConfidenceAwaitsAssistance(t *testing.T) {
	driver := &fakeDriver{hittables: []Hittable{
		{ID: "x", Name: "Something", Role: "button", Center: [2]float64{10, 10}, HitState: HitStateHittable},
	}}
	assistant := &fakeAssistant{result: &AssistantResult{Action: "click", Confidence: 0.4}}
	target := &decision.Target{Hints: decision.Hints{TextExact: []string{"nope"}}}

	res, err := Resolve(context.Background(), target, 1, driver, assistant, "goal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeAwaitAssistance {
		t.Fatalf("outcome = %v, want await_assistance", res.Outcome)
	}
	if len(driver.clicks) != 0 {
		t.Fatalf("no click should be issued on low confidence, got %v", driver.clicks)
	}
}

func TestResolveNilTargetAwaitsAssistanceWithoutPanicking(t *testing.T) {
	driver := &fakeDriver{hittables: []Hittable{
		{ID: "x", Name: "Something", Role: "button", Center: [2]float64{10, 10}, HitState: HitStateHittable},
	}}
	assistant := &fakeAssistant{result: &AssistantResult{Action: "click", Confidence: 0.4}}

	// A Critic "accept" decision may carry no target at all.
	res, err := Resolve(context.Background(), nil, 1, driver, assistant, "goal", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeAwaitAssistance {
		t.Fatalf("outcome = %v, want await_assistance", res.Outcome)
	}
}

func TestRadiusFilterKeepsOnlyWithinRadiusOrNearestFallback(t *testing.T) {
	near := Hittable{ID: "near", Center: [2]float64{100, 100}, Rect: [4]float64{95, 95, 10, 10}, HitState: HitStateHittable}
	far := Hittable{ID: "far", Center: [2]float64{900, 900}, Rect: [4]float64{895, 895, 10, 10}, HitState: HitStateHittable}

	pool := filterByRadiusOrWindow([]Hittable{near, far}, 100, 100, true, 50)
	if len(pool) != 1 || pool[0].ID != "near" {
		t.Fatalf("got %v, want only the within-radius element", pool)
	}

	// No element within radius of a far-away center -> nearest-20 fallback.
	farCenter := filterByRadiusOrWindow([]Hittable{near, far}, 10000, 10000, true, 1)
	if len(farCenter) != 2 {
		t.Fatalf("fallback should return all elements when fewer than 20 exist, got %d", len(farCenter))
	}
}

func TestDedupeNoIDCollision(t *testing.T) {
	in := []Hittable{
		{ID: "a", Name: "X", Role: "button", Center: [2]float64{1, 1}},
		{ID: "a", Name: "Y", Role: "link", Center: [2]float64{2, 2}}, // same id, should be dropped
		{Name: "Z", Role: "button", Center: [2]float64{3.4, 3.6}},
		{Name: "Z", Role: "button", Center: [2]float64{3.2, 3.7}}, // rounds to same (cx,cy,role,name)
	}
	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("got %d deduped elements, want 2: %+v", len(out), out)
	}
	if out[0].ID != "a" {
		t.Fatalf("first-wins violated: %+v", out[0])
	}
}

func TestDedupeKeepsBlankNameHittablesAtDistinctCenters(t *testing.T) {
	in := []Hittable{
		{Role: "button", Center: [2]float64{10, 10}},  // unlabeled icon button, top of page
		{Role: "button", Center: [2]float64{10, 900}}, // unlabeled icon button, bottom of page
	}
	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("got %d deduped elements, want 2 (distinct positions must not collapse): %+v", len(out), out)
	}
}

func TestExactMatchTieBreaksByDistance(t *testing.T) {
	in := []Hittable{
		{Name: "Submit", Role: "button", Center: [2]float64{500, 500}},
		{Name: "Submit", Role: "button", Center: [2]float64{10, 10}},
	}
	match, ok := exactMatch(in, []string{"Submit"}, 12, 12, true)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Center != [2]float64{10, 10} {
		t.Fatalf("got %+v, want the nearer element at (10,10)", match)
	}
}

func TestPostClickEffectsClearTypeSubmit(t *testing.T) {
	driver := &fakeDriver{hittables: []Hittable{
		{ID: "f", Name: "Search", Role: "textbox", Center: [2]float64{50, 50}, HitState: HitStateHittable},
	}}
	assistant := &fakeAssistant{}
	target := &decision.Target{
		Hints:   decision.Hints{TextExact: []string{"Search"}},
		Clear:   true,
		Content: "hi",
		Submit:  true,
	}

	res, err := Resolve(context.Background(), target, 1, driver, assistant, "search", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeClicked {
		t.Fatalf("got %v", res.Outcome)
	}
	if !driver.cleared {
		t.Error("expected ClearActiveInput to be called")
	}
	if string(driver.typed) != "hi" {
		t.Errorf("typed = %q, want hi", string(driver.typed))
	}
	if !driver.entered {
		t.Error("expected PressEnter to be called")
	}
}
