package driver

import (
	"sync"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

// Pool is the shared registry of connected Agents (spec.md §3 "Agent").
// Mutated only by the driver on handshake/detach/heartbeat; callers hold
// a pointer to an Agent and may call commands concurrently (spec.md §5
// "Shared-resource policy").
type Pool struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

func NewPool() *Pool {
	return &Pool{agents: make(map[string]*Agent)}
}

func (p *Pool) add(a *Agent) {
	p.mu.Lock()
	p.agents[a.ID] = a
	p.mu.Unlock()
}

func (p *Pool) remove(id string) {
	p.mu.Lock()
	delete(p.agents, id)
	p.mu.Unlock()
}

// uniqueID returns id if free, else a generated one — spec.md §4.3
// "Handshake: ...assigns a unique id (keep requested if free, else
// generate)".
func (p *Pool) uniqueID(requested string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if requested != "" {
		if _, taken := p.agents[requested]; !taken {
			return requested
		}
	}
	for {
		candidate := newAgentID()
		if _, taken := p.agents[candidate]; !taken {
			return candidate
		}
	}
}

// PickAgent implements spec.md §4.3 "Agent selection": exact match if
// available, else most-recently-seen idle, else any.
func (p *Pool) PickAgent(preferredID string) (*Agent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if preferredID != "" {
		if a, ok := p.agents[preferredID]; ok {
			return a, nil
		}
	}

	var bestIdle *Agent
	var bestIdleSeen time.Time
	var any_ *Agent
	for _, a := range p.agents {
		a.mu.Lock()
		status, lastSeen := a.status, a.lastSeen
		a.mu.Unlock()

		if any_ == nil {
			any_ = a
		}
		if status == StatusIdle && lastSeen.After(bestIdleSeen) {
			bestIdle, bestIdleSeen = a, lastSeen
		}
	}
	if bestIdle != nil {
		return bestIdle, nil
	}
	if any_ != nil {
		return any_, nil
	}
	return nil, nerovaerr.New(nerovaerr.CodeAgentUnavailable, "no agents connected")
}

// PruneStale disconnects every agent whose lastSeen exceeds the 60s
// heartbeat threshold (spec.md §4.3 "Heartbeat").
func (p *Pool) PruneStale() {
	now := time.Now()
	p.mu.RLock()
	var stale []*Agent
	for _, a := range p.agents {
		if a.staleSince(now) {
			stale = append(stale, a)
		}
	}
	p.mu.RUnlock()

	for _, a := range stale {
		p.Disconnect(a.ID)
	}
}

// Disconnect removes the agent from the pool and fails all its
// outstanding waiters (spec.md §4.3 "Disconnection").
func (p *Pool) Disconnect(id string) {
	p.mu.Lock()
	a, ok := p.agents[id]
	delete(p.agents, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	a.rejectAllWaiters()
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// Len reports the number of connected agents.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}
