package loop

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/resolver"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

// stepOutcome is what one iteration decided, driving runIterations' switch.
type stepOutcome int

const (
	stepContinue stepOutcome = iota
	stepResend               // Critic said resend (or returned no decision): don't advance the step counter
	stepStop                 // Critic said stop: terminal success
	stepHalt                 // unsupported action: terminal halt
	stepAwaitAssistance      // click resolver exhausted every fallback: terminal await_assistance (spec.md §8 scenario 4)
	stepPauseReplay          // paused mid-step: replay the same step after resume
	stepAborted              // run aborted mid-step
	stepError                // hard failure
)

const (
	resendDelayBase   = 250 * time.Millisecond
	resendDelayJitter = 150 * time.Millisecond
	defaultScrollPx   = 200
)

// runIterations implements spec.md §4.1 phase 3 (Iteration) and phase 4
// (Terminate)'s status selection. It loops until a terminal outcome:
// stop, halt, abort, error, or the hard step budget is exhausted.
func (e *execution) runIterations(ctx context.Context) (runstate.Status, error) {
	for e.run.Iterations() < e.maxSteps {
		if err := e.sup.WaitAtBarrier(ctx); err != nil {
			return runstate.StatusAborted, err
		}

		e.run.IncrementIteration()
		stepCtx, span := e.l.cfg.Tracer.StartStep(ctx, e.run.Iterations(), "iteration")
		out, haltReason, err := e.runOneIteration(stepCtx)
		span.SetError(err)
		span.End()

		switch out {
		case stepContinue:
			e.journal.LogStage("iteration", map[string]any{"iteration": e.run.Iterations()})
			e.l.emit(e.run.ID, protocol.RunEventIterationDone, map[string]any{"iteration": e.run.Iterations()})
		case stepResend:
			e.run.DecrementIteration()
			sleepOrDone(ctx, resendDelay())
		case stepPauseReplay:
			e.run.DecrementIteration()
			if err := e.sup.WaitAtBarrier(ctx); err != nil {
				return runstate.StatusAborted, err
			}
		case stepStop:
			return runstate.StatusStop, nil
		case stepHalt:
			return runstate.StatusHalt, nerovaerr.New(nerovaerr.Code(haltReason), haltReason)
		case stepAwaitAssistance:
			return runstate.StatusAwaitAssist, nerovaerr.New(nerovaerr.CodeAwaitAssistance, haltReason)
		case stepAborted:
			return runstate.StatusAborted, err
		case stepError:
			return runstate.StatusError, err
		}
	}
	return runstate.StatusHalt, nerovaerr.New("max_steps_reached", "max steps reached")
}

func resendDelay() time.Duration {
	return resendDelayBase + time.Duration(rand.Int63n(int64(resendDelayJitter)))
}

// runOneIteration implements spec.md §4.1 phase 3: consume one queued
// override context, rebuild the effective prompt, capture a screenshot,
// call the Critic, merge completeHistory, and dispatch the decided action.
func (e *execution) runOneIteration(ctx context.Context) (stepOutcome, string, error) {
	token := e.sup.Token()

	if text, ok := e.sup.DequeueContext(); ok {
		e.run.AppendContext(text)
	}
	effectivePrompt := e.promptAsm.Effective(e.run.Contexts())

	shot, err := e.l.cfg.Driver.Screenshot(token)
	if err != nil {
		out, werr := ioOutcome(token, err, nerovaerr.CodeScreenshotFailed, "iteration screenshot")
		return out, "", werr
	}

	step := e.nextStep()
	e.journal.WriteStepArtifact(step, "critic.png", shot)

	payload := llmclient.CriticPayload{
		Goal:            llmclient.Goal{OriginalPrompt: effectivePrompt},
		Context:         llmclient.RunContext{CurrentURL: e.session.CurrentURL(), ContextActive: e.run.ContextActive(), ContextStep: e.run.ContextStep()},
		CompleteHistory: llmclient.LastN(e.run.CompleteHistory(), 20),
	}
	e.journal.WriteStepJSON(step, "critic-input", payload)

	result, err := e.l.cfg.Critic.CallCritic(token, e.criticModel, e.criticKey, payload, shot, nil)
	if err != nil {
		out, werr := ioOutcome(token, err, nerovaerr.CodeCriticHTTP, "critic call")
		return out, "", werr
	}
	e.journal.WriteStepJSON(step, "critic-output", map[string]any{"raw": result.Raw, "decision": result.Decision})

	if result.Decision == nil {
		return stepResend, "", nil
	}
	d := result.Decision

	e.run.MergeCompleteHistory(func(h []string) []string { return decision.ExtractCompletes(d, h) })
	e.session.SetCompleteHistory(e.run.CompleteHistory())

	if d.NewContext != "" {
		e.run.ReplaceOverrideContext(e.initialContextCount, d.NewContext)
	}

	if !d.Known {
		e.journal.LogLine("halt: unsupported action in decision")
		return stepHalt, "unsupported_action", nil
	}

	switch d.Action {
	case decision.ActionStop:
		return stepStop, "", nil

	case decision.ActionResend:
		return stepResend, "", nil

	case decision.ActionNavigate:
		if err := e.l.cfg.Driver.Navigate(token, d.URL); err != nil {
			out, werr := ioOutcome(token, err, nerovaerr.CodeScreenshotFailed, "navigate")
			return out, "", werr
		}
		e.session.SetCurrentURL(d.URL)
		sleepOrDone(ctx, navigateSettleDelay)
		return stepContinue, "", nil

	case decision.ActionBack:
		if err := e.l.cfg.Driver.GoBack(token); err != nil {
			out, werr := ioOutcome(token, err, nerovaerr.CodeScreenshotFailed, "go back")
			return out, "", werr
		}
		return stepContinue, "", nil

	case decision.ActionScroll:
		if err := e.dispatchScroll(token, d.Scroll); err != nil {
			out, werr := ioOutcome(token, err, nerovaerr.CodeScreenshotFailed, "scroll")
			return out, "", werr
		}
		return stepContinue, "", nil

	case decision.ActionClick, decision.ActionAccept:
		awaitAssistance, err := e.dispatchClick(token, d, shot, effectivePrompt, step)
		if err != nil {
			out, werr := ioOutcome(token, err, nerovaerr.CodeAssistantError, "click resolution")
			return out, "", werr
		}
		if awaitAssistance {
			return stepAwaitAssistance, "await_assistance", nil
		}
		return stepContinue, "", nil

	default:
		e.journal.LogLine("halt: unhandled known action " + string(d.Action))
		return stepHalt, "unsupported_action", nil
	}
}

// dispatchScroll implements spec.md §4.1's scroll action: the pixel delta
// is the Critic's explicit amount if given, else pages × a default derived
// from an assumed viewport height (the driver has no dedicated viewport
// query — see DESIGN.md), with a floor of defaultScrollPx.
func (e *execution) dispatchScroll(token context.Context, s *decision.Scroll) error {
	if s == nil {
		return nil
	}
	delta := scrollDeltaPx(s, e.l.cfg.ViewportHeightPx)
	direction := s.Direction
	if direction == "" {
		direction = "down"
	}
	return e.l.cfg.Driver.ScrollUniversal(token, direction, delta)
}

func scrollDeltaPx(s *decision.Scroll, viewportHeight int) int {
	base := int(math.Round(0.8 * float64(viewportHeight)))
	if base < defaultScrollPx {
		base = defaultScrollPx
	}
	switch {
	case s.Amount > 0:
		return s.Amount
	case s.Pages > 0:
		return base * s.Pages
	default:
		return base
	}
}

// dispatchClick runs the Click Resolver for a click_by_text_role/accept
// decision and journals its outcome (spec.md §4.2). It reports
// awaitAssistance=true when the resolver exhausted every fallback without
// finding a click point — the caller turns that into an await_assistance
// terminal status (spec.md §8 scenario 4).
func (e *execution) dispatchClick(token context.Context, d *decision.Decision, shot []byte, goal string, step int) (bool, error) {
	res, err := resolver.Resolve(token, d.Target, e.l.cfg.DevicePixelRatio, e.l.cfg.Driver, e.assistant, goal, shot)
	if err != nil {
		return false, err
	}
	e.journal.WriteStepJSON(step, "click-selection", map[string]any{
		"outcome":  res.Outcome,
		"point":    res.Point,
		"viaExact": res.ViaExact,
	})
	return res.Outcome == resolver.OutcomeAwaitAssistance, nil
}
