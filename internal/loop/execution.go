package loop

import (
	"context"
	"errors"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/journal"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/resolver"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
)

// execution bundles everything one Run call threads through Bootstrap and
// Iteration — the receiver for both phases' methods, so neither has to pass
// a dozen parameters by hand.
type execution struct {
	l       *Loop
	run     *runstate.Run
	sup     *runstate.Supervisor
	journal *journal.Journal

	promptAsm *runstate.PromptAssembler
	session   *runstate.Session
	assistant resolver.Assistant

	initialContextCount int
	stepCounter          int

	maxSteps       int
	criticModel    string
	criticKey      string
	assistantModel string
	assistantID    string
	assistantKey   string
}

func (e *execution) nextStep() int {
	e.stepCounter++
	return e.stepCounter
}

// sleepOrDone waits d or until ctx is done, whichever comes first — used
// for the settle delays spec.md §4.1 prescribes after navigate/resend,
// without blocking a pause/abort signal from taking effect.
func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// isPauseErr and isAbortErr classify an error returned by an I/O call made
// against token (the Supervisor's cancellation token at the time of the
// call) as a pause interrupt or a run abort (spec.md §9 "Cancellable I/O").
func isPauseErr(token context.Context, err error) bool {
	if err == nil || !errors.Is(err, context.Canceled) {
		return false
	}
	paused, _ := runstate.ClassifyCause(token)
	return paused
}

func isAbortErr(token context.Context, err error) bool {
	if err == nil || !errors.Is(err, context.Canceled) {
		return false
	}
	_, aborted := runstate.ClassifyCause(token)
	return aborted
}

// ioOutcome classifies the result of an I/O call made against token into a
// stepOutcome: pause-replay, abort, or a wrapped hard failure. Call sites
// that get a non-continue outcome back should return it immediately.
func ioOutcome(token context.Context, err error, code nerovaerr.Code, msg string) (stepOutcome, error) {
	switch {
	case isPauseErr(token, err):
		return stepPauseReplay, nil
	case isAbortErr(token, err):
		return stepAborted, runstate.ErrRunAborted
	default:
		return stepError, nerovaerr.Wrap(code, msg, err)
	}
}
