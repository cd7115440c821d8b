package runstate

import (
	"context"
	"errors"
	"sync"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

// ErrPauseInterrupt and ErrRunAborted are the cancellation causes a
// Supervisor attaches to its token's context, so a cancelled I/O call can
// be distinguished from an ordinary deadline/cancel (spec.md §9
// "Cancellable I/O": a cancellation token passed through every I/O call).
var (
	ErrPauseInterrupt = nerovaerr.New(nerovaerr.CodePauseInterrupt, "pause requested")
	ErrRunAborted     = nerovaerr.New(nerovaerr.CodeRunAborted, "run aborted")
)

// Supervisor is the process-wide (in this port: per-run) Pause State
// (spec.md §3). The source keeps these as module-level globals; here they
// are a value per active run so cross-run isolation is a type guarantee
// (spec.md §9 "Global pause state").
type Supervisor struct {
	mu sync.Mutex

	pauseRequested  bool
	abortRequested  bool
	pauseGeneration uint64
	handledGen      uint64

	contextQueue []string // FIFO of supplied override-context strings

	tokenCtx    context.Context
	tokenCancel context.CancelCauseFunc

	resumeCh chan struct{} // closed and replaced each time pause is cleared or the run aborts
}

// NewSupervisor creates a Supervisor with a fresh, uncancelled token.
func NewSupervisor(parent context.Context) *Supervisor {
	s := &Supervisor{resumeCh: make(chan struct{})}
	s.installFreshToken(parent)
	return s
}

func (s *Supervisor) installFreshToken(parent context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	s.tokenCtx = ctx
	s.tokenCancel = cancel
}

// Token returns the context every I/O call in the current iteration must
// use. It is cancelled with ErrPauseInterrupt or ErrRunAborted when a
// pause/abort is requested, and replaced with a fresh one on resume.
func (s *Supervisor) Token() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCtx
}

// RequestPause flips pauseRequested, bumps the generation, and cancels the
// current token so every in-flight external call observes it (spec.md §5).
// Idempotent: a second call before resume is a no-op.
func (s *Supervisor) RequestPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseRequested || s.abortRequested {
		return
	}
	s.pauseRequested = true
	s.pauseGeneration++
	s.tokenCancel(ErrPauseInterrupt)
}

// PauseRequested reports whether a pause is currently in effect.
func (s *Supervisor) PauseRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseRequested
}

// Generation returns the current pauseGeneration, used by barriers to
// detect whether they're still waiting on the pause they observed.
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseGeneration
}

// SupplyContext enqueues text as override context (possibly empty),
// clears pauseRequested, marks the generation handled, and installs a
// fresh token so subsequent I/O proceeds (spec.md §5). A no-op if no pause
// is outstanding.
func (s *Supervisor) SupplyContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pauseRequested {
		return
	}
	s.contextQueue = append(s.contextQueue, text)
	s.pauseRequested = false
	s.handledGen = s.pauseGeneration
	s.installFreshToken(context.Background())
	close(s.resumeCh)
	s.resumeCh = make(chan struct{})
}

// AbortRun sets abortRequested, cancels the current token with
// ErrRunAborted, and clears the pending context queue (spec.md §5).
func (s *Supervisor) AbortRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortRequested {
		return
	}
	s.abortRequested = true
	s.contextQueue = nil
	s.tokenCancel(ErrRunAborted)
	close(s.resumeCh)
	s.resumeCh = make(chan struct{})
}

func (s *Supervisor) AbortRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortRequested
}

// WaitAtBarrier blocks the caller until either the pause is cleared via
// SupplyContext (returns nil) or the run is aborted (returns
// ErrRunAborted). It is the "pause barrier" of spec.md §4.1/§5: a
// checkpoint right after an I/O call observes ErrPauseInterrupt.
func (s *Supervisor) WaitAtBarrier(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.abortRequested {
			s.mu.Unlock()
			return ErrRunAborted
		}
		if !s.pauseRequested {
			s.mu.Unlock()
			return nil
		}
		ch := s.resumeCh
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DequeueContext pops the next queued override-context string, if any
// (spec.md §3: "exactly one queued context... is consumed on the next
// loop entry").
func (s *Supervisor) DequeueContext() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contextQueue) == 0 {
		return "", false
	}
	next := s.contextQueue[0]
	s.contextQueue = s.contextQueue[1:]
	return next, true
}

// ClassifyCause inspects the context passed to a cancelled I/O call (the
// same context.Context returned by Token() at the time of the call) and
// reports whether its cancellation was a pause interrupt or a run abort.
func ClassifyCause(ctx context.Context) (paused, aborted bool) {
	cause := context.Cause(ctx)
	return errors.Is(cause, ErrPauseInterrupt), errors.Is(cause, ErrRunAborted)
}
