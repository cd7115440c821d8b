package resolver

import (
	"context"
	"sort"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

const (
	defaultRadiusPx  = 120
	radiusNearestCap = 20
	noCenterCap      = 200
	assistantMaxCand = 12
	assistantMinConf = 0.6
	typeCharDelay    = 120 * time.Millisecond
)

// Driver is the subset of the Remote Driver the resolver needs. The full
// command set lives in internal/driver; this interface lets resolver tests
// run against a fake without importing the transport layer.
type Driver interface {
	Hittables(ctx context.Context) ([]Hittable, error)
	ClickViewport(ctx context.Context, vx, vy float64) error
	ClearActiveInput(ctx context.Context) error
	TypeChar(ctx context.Context, ch rune) error
	PressEnter(ctx context.Context) error
}

// AssistantResult is the normalized shape of an Assistant disambiguation
// response, regardless of which call mode produced it (spec.md §4.4).
type AssistantResult struct {
	Action      string // click | accept | scroll | stop | unknown
	CandidateID string
	Center      [2]float64
	Confidence  float64
}

// Assistant is the subset of internal/llmclient the resolver needs for
// click disambiguation (spec.md §4.2 step 7/8).
type Assistant interface {
	DisambiguateClick(ctx context.Context, goal string, target *decision.Target, candidates []Hittable, screenshotPNG []byte) (*AssistantResult, error)
}

// Outcome is the terminal result of Resolve.
type Outcome string

const (
	OutcomeClicked         Outcome = "clicked"
	OutcomeAwaitAssistance Outcome = "await_assistance"
)

// Result describes what Resolve decided and did.
type Result struct {
	Outcome  Outcome
	Point    [2]float64
	Picked   *Hittable // set only for an exact match; nil whenever the click point came from the Assistant
	ViaExact bool
}

// Resolve runs the full algorithm of spec.md §4.2 steps 1–8 and, for a
// resulting click, the post-click effects (clear/type/submit). ctx must be
// a Supervisor token so every I/O call here is pause/abort-aware.
func Resolve(ctx context.Context, target *decision.Target, dpr float64, driver Driver, assistant Assistant, goal string, screenshotPNG []byte) (*Result, error) {
	if target == nil {
		// click_by_text_role/accept decisions may omit target entirely
		// (decision.Parse accepts this); treat it as the zero value rather
		// than panicking downstream on target.Role/target.Hints.
		target = &decision.Target{}
	}
	cx, cy, hasCenter := normalizeCenter(target, dpr)
	radius := normalizeRadius(target, dpr)

	all, err := driver.Hittables(ctx)
	if err != nil {
		return nil, err
	}
	all = Dedupe(all)

	pool := filterByRadiusOrWindow(all, cx, cy, hasCenter, radius)
	preferredPool := preferHittable(pool)

	restricted := filterByRole(preferredPool, target)
	if len(restricted) > 0 {
		preferredPool = restricted
	}

	if match, ok := exactMatch(preferredPool, target.Hints.TextExact, cx, cy, hasCenter); ok {
		res, err := clickAndApplyEffects(ctx, driver, match.Center[0], match.Center[1], target)
		if err != nil {
			return nil, err
		}
		res.Picked = &match
		res.ViaExact = true
		return res, nil
	}

	// Step 7: Assistant fallback over the preferred pool.
	assistResult, err := assistantFallback(ctx, assistant, goal, target, preferredPool, screenshotPNG)
	if err != nil {
		return nil, err
	}
	if assistResult != nil {
		return clickAndApplyEffects(ctx, driver, assistResult.Center[0], assistResult.Center[1], target)
	}

	// Step 8: last-resort Assistant over the first 12 deduplicated
	// hittables, only if the preferred pool was empty.
	if len(preferredPool) == 0 {
		lastResort := all
		if len(lastResort) > assistantMaxCand {
			lastResort = lastResort[:assistantMaxCand]
		}
		assistResult, err = assistantFallback(ctx, assistant, goal, target, lastResort, screenshotPNG)
		if err != nil {
			return nil, err
		}
		if assistResult != nil {
			return clickAndApplyEffects(ctx, driver, assistResult.Center[0], assistResult.Center[1], target)
		}
	}

	return &Result{Outcome: OutcomeAwaitAssistance}, nil
}

func normalizeCenter(target *decision.Target, dpr float64) (cx, cy float64, ok bool) {
	if target == nil || len(target.Center) != 2 {
		return 0, 0, false
	}
	if dpr <= 0 {
		dpr = 1
	}
	return target.Center[0] / dpr, target.Center[1] / dpr, true
}

func normalizeRadius(target *decision.Target, dpr float64) float64 {
	if target == nil || target.Radius <= 0 {
		return defaultRadiusPx
	}
	if dpr <= 0 {
		dpr = 1
	}
	return target.Radius / dpr
}

// filterByRadiusOrWindow implements spec.md §4.2 step 3.
func filterByRadiusOrWindow(all []Hittable, cx, cy float64, hasCenter bool, radius float64) []Hittable {
	if !hasCenter {
		if len(all) > noCenterCap {
			return append([]Hittable(nil), all[:noCenterCap]...)
		}
		return all
	}

	var within []Hittable
	for _, h := range all {
		if withinRadius(h, cx, cy, radius) {
			within = append(within, h)
		}
	}
	if len(within) > 0 {
		return within
	}

	// Fall back to the 20 nearest by the same distance metric.
	sorted := append([]Hittable(nil), all...)
	sort.Slice(sorted, func(i, j int) bool {
		return distanceToPoint(sorted[i], cx, cy) < distanceToPoint(sorted[j], cx, cy)
	})
	if len(sorted) > radiusNearestCap {
		sorted = sorted[:radiusNearestCap]
	}
	return sorted
}

// preferHittable implements spec.md §4.2 step 4.
func preferHittable(in []Hittable) []Hittable {
	var hittable []Hittable
	for _, h := range in {
		if h.HitState == HitStateHittable {
			hittable = append(hittable, h)
		}
	}
	if len(hittable) > 0 {
		return hittable
	}
	return in
}

// filterByRole implements spec.md §4.2 step 5.
func filterByRole(in []Hittable, target *decision.Target) []Hittable {
	roles := map[string]bool{}
	if target.Role != "" {
		roles[normalize(target.Role)] = true
	}
	for _, r := range target.Hints.Roles {
		roles[normalize(r)] = true
	}
	if len(roles) == 0 {
		return nil
	}
	var out []Hittable
	for _, h := range in {
		if roles[normalize(h.Role)] {
			out = append(out, h)
		}
	}
	return out
}

// exactMatch implements spec.md §4.2 step 6 and §8 invariant 5 (tie-break
// by distance to target center).
func exactMatch(in []Hittable, textExact []string, cx, cy float64, hasCenter bool) (Hittable, bool) {
	if len(textExact) == 0 {
		return Hittable{}, false
	}
	wanted := make(map[string]bool, len(textExact))
	for _, t := range textExact {
		wanted[normalize(t)] = true
	}

	var best Hittable
	bestDist := -1.0
	found := false
	for _, h := range in {
		if !wanted[normalize(h.Name)] {
			continue
		}
		if !found {
			best, found = h, true
			if hasCenter {
				bestDist = distanceToPoint(h, cx, cy)
			}
			continue
		}
		if !hasCenter {
			continue // first match wins when there's no center to break ties with
		}
		d := distanceToPoint(h, cx, cy)
		if d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, found
}

func assistantFallback(ctx context.Context, assistant Assistant, goal string, target *decision.Target, candidates []Hittable, screenshotPNG []byte) (*AssistantResult, error) {
	pool := candidates
	if len(pool) > assistantMaxCand {
		pool = pool[:assistantMaxCand]
	}
	result, err := assistant.DisambiguateClick(ctx, goal, target, pool, screenshotPNG)
	if err != nil {
		return nil, nerovaerr.Wrap(nerovaerr.CodeAssistantError, "assistant disambiguation failed", err)
	}
	if result == nil {
		return nil, nil
	}
	if (result.Action != "click" && result.Action != "accept") || result.Confidence < assistantMinConf {
		return nil, nil
	}
	return result, nil
}

func clickAndApplyEffects(ctx context.Context, driver Driver, x, y float64, target *decision.Target) (*Result, error) {
	if err := driver.ClickViewport(ctx, x, y); err != nil {
		return nil, err
	}
	if target != nil {
		if target.Clear {
			if err := driver.ClearActiveInput(ctx); err != nil {
				return nil, err
			}
		}
		if target.Content != "" {
			chars := []rune(target.Content)
			for i, ch := range chars {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if err := driver.TypeChar(ctx, ch); err != nil {
					return nil, err
				}
				if i < len(chars)-1 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(typeCharDelay):
					}
				}
			}
		}
		if target.Submit {
			if err := driver.PressEnter(ctx); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Outcome: OutcomeClicked, Point: [2]float64{x, y}}, nil
}
