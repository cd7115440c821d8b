package runstate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPauseBlocksUntilSupplyContext(t *testing.T) {
	sv := NewSupervisor(context.Background())
	tok := sv.Token()

	sv.RequestPause()

	select {
	case <-tok.Done():
	default:
		t.Fatal("token should be cancelled immediately after RequestPause")
	}
	paused, aborted := ClassifyCause(tok)
	if !paused || aborted {
		t.Fatalf("expected paused=true aborted=false, got paused=%v aborted=%v", paused, aborted)
	}

	done := make(chan struct{})
	go func() {
		_ = sv.WaitAtBarrier(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitAtBarrier returned before SupplyContext was called")
	case <-time.After(20 * time.Millisecond):
	}

	sv.SupplyContext("focus on the search box")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAtBarrier did not unblock after SupplyContext")
	}

	ctxText, ok := sv.DequeueContext()
	if !ok || ctxText != "focus on the search box" {
		t.Fatalf("got context %q ok=%v", ctxText, ok)
	}
}

func TestAbortUnblocksBarrierWithError(t *testing.T) {
	sv := NewSupervisor(context.Background())
	sv.RequestPause()

	done := make(chan error, 1)
	go func() { done <- sv.WaitAtBarrier(context.Background()) }()

	sv.AbortRun()

	select {
	case err := <-done:
		if !errors.Is(err, ErrRunAborted) {
			t.Fatalf("got %v, want ErrRunAborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitAtBarrier did not unblock after AbortRun")
	}
}

func TestStepCounterStableAcrossPauseResume(t *testing.T) {
	run := New("r1", "do the thing", "/tmp/r1", nil)
	run.IncrementIteration()
	before := run.Iterations()

	// Barrier replay: decrement, then the resumed attempt increments again.
	run.DecrementIteration()
	run.IncrementIteration()

	if run.Iterations() != before {
		t.Fatalf("iterations = %d, want unchanged %d across pause replay", run.Iterations(), before)
	}
}
