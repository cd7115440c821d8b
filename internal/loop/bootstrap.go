package loop

import (
	"context"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
)

// maxBootstrapAttempts bounds the Bootstrap phase's navigate/resend loop
// (spec.md §4.1 phase 2): after this many attempts with no "proceed" the
// loop logs a warning and hands off to Iteration anyway, rather than
// failing the whole run over a stuck bootstrap critic.
const maxBootstrapAttempts = 5

// navigateSettleDelay is the pause after a navigate command before the
// next screenshot is taken, giving the page time to paint (spec.md §4.1).
const navigateSettleDelay = 800 * time.Millisecond

// runBootstrap implements spec.md §4.1 phase 2: repeatedly screenshot and
// ask the Bootstrap Critic whether to navigate somewhere first, resend
// (retry the same screenshot), or proceed into the main iteration loop.
// The Bootstrap Critic's action vocabulary (navigate|resend|proceed) is
// distinct from decision.Action's main seven values, so Known is expected
// to be false here — only the raw Action string is inspected.
func (e *execution) runBootstrap(ctx context.Context) error {
	for attempt := 1; attempt <= maxBootstrapAttempts; attempt++ {
		if err := e.sup.WaitAtBarrier(ctx); err != nil {
			return err
		}

		stepCtx, span := e.l.cfg.Tracer.StartStep(ctx, -attempt, "bootstrap")
		done, err := e.runBootstrapAttempt(stepCtx, attempt)
		span.SetError(err)
		span.End()
		if done || err != nil {
			return err
		}
	}

	e.l.cfg.Logger.Warn("bootstrap exhausted attempts, proceeding anyway", "run", e.run.ID, "attempts", maxBootstrapAttempts)
	e.journal.LogLine("bootstrap exhausted attempts, proceeding anyway")
	return nil
}

// runBootstrapAttempt runs one screenshot→critic→dispatch round of the
// Bootstrap phase. done=true means the phase is over (navigate issued, or
// the critic said anything other than resend); done=false with a nil error
// means the caller should try another attempt (pause replay, unparsed
// decision, or an explicit resend).
func (e *execution) runBootstrapAttempt(ctx context.Context, attempt int) (bool, error) {
	token := e.sup.Token()

	shot, err := e.l.cfg.Driver.Screenshot(token)
	if err != nil {
		if isPauseErr(token, err) {
			return false, nil // replay this bootstrap attempt after resume
		}
		if isAbortErr(token, err) {
			return true, runstate.ErrRunAborted
		}
		return true, nerovaerr.Wrap(nerovaerr.CodeScreenshotFailed, "bootstrap screenshot", err)
	}

	step := e.nextStep()
	e.journal.WriteStepArtifact(step, "critic.png", shot)

	payload := llmclient.CriticPayload{
		Goal:            llmclient.Goal{OriginalPrompt: e.run.BasePrompt},
		Context:         llmclient.RunContext{CurrentURL: e.session.CurrentURL(), ContextActive: e.run.ContextActive(), ContextStep: e.run.ContextStep()},
		CompleteHistory: llmclient.LastN(e.run.CompleteHistory(), 20),
	}
	e.journal.WriteStepJSON(step, "critic-input", payload)

	result, err := e.l.cfg.Critic.CallBootstrapCritic(token, e.criticModel, e.criticKey, payload, shot)
	if err != nil {
		if isPauseErr(token, err) {
			return false, nil
		}
		if isAbortErr(token, err) {
			return true, runstate.ErrRunAborted
		}
		return true, nerovaerr.Wrap(nerovaerr.CodeCriticHTTP, "bootstrap critic call", err)
	}
	e.journal.WriteStepJSON(step, "critic-output", map[string]any{"raw": result.Raw, "decision": result.Decision})
	e.journal.LogStage("bootstrap", map[string]any{"attempt": attempt, "step": step})

	if result.Decision == nil {
		return false, nil // no decision parsed: spec.md §9 "resend" equivalent
	}
	e.run.MergeCompleteHistory(func(h []string) []string { return decision.ExtractCompletes(result.Decision, h) })

	switch result.Decision.Action {
	case decision.ActionNavigate:
		if err := e.l.cfg.Driver.Navigate(token, result.Decision.URL); err != nil {
			if isPauseErr(token, err) {
				return false, nil
			}
			if isAbortErr(token, err) {
				return true, runstate.ErrRunAborted
			}
			return true, nerovaerr.Wrap(nerovaerr.CodeScreenshotFailed, "bootstrap navigate", err)
		}
		e.session.SetCurrentURL(result.Decision.URL)
		sleepOrDone(ctx, navigateSettleDelay)
		return true, nil
	case decision.ActionResend:
		return false, nil
	default:
		// "proceed", or any other value the bootstrap critic emits —
		// bootstrap's job is done, hand off to the main iteration loop.
		return true, nil
	}
}
