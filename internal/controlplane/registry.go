// Package controlplane exposes run.pause.request/run.context.supply/
// run.abort/run.status/run.subscribe to a remote supervisor process over a
// second WebSocket surface, separate from the agent-pool transport in
// internal/driver (spec.md §4.1/§5, SPEC_FULL §4.3 addition).
package controlplane

import (
	"sync"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/internal/runstate"
)

// Handle bundles the two per-run objects a control-plane caller needs: the
// Run itself (for status/summary) and its Supervisor (for pause/resume/
// abort). The Control Loop registers one Handle per active run.
type Handle struct {
	Run        *runstate.Run
	Supervisor *runstate.Supervisor
}

// Registry is the process-wide map from run ID to Handle. One Registry is
// shared by the Control Loop (which registers/unregisters runs as they
// start and finish) and the Server (which looks runs up per request).
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Handle)}
}

func (r *Registry) Register(runID string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = h
}

func (r *Registry) Unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

func (r *Registry) Get(runID string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.runs[runID]
	if !ok {
		return nil, nerovaerr.New(nerovaerr.CodeAgentUnavailable, "run not found: "+runID)
	}
	return h, nil
}

// Snapshot returns the run IDs currently registered, for run.status calls
// with no runId filter.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}
