// Package driver implements the Remote Browser Driver protocol (spec.md
// §4.3): the agent pool, command/response correlation, handshake, and
// heartbeat pruning, over a gorilla/websocket transport. It generalizes
// the teacher's internal/gateway client-registry pattern
// (*http.ServeMux + websocket.Upgrader + per-connection Client struct)
// from its chat-gateway protocol to the browser-worker command protocol.
package driver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Status is an Agent's place in its connecting → idle ↔ busy lifecycle
// (spec.md §3).
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusIdle       Status = "idle"
	StatusBusy       Status = "busy"
)

// heartbeatStaleAfter is the threshold past which an Agent's lastSeen
// marks it dead (spec.md §4.3 "Heartbeat").
const heartbeatStaleAfter = 60 * time.Second

// waiter is a one-shot rendezvous for a single outstanding command,
// guarded only for insert/remove by the Agent's mutex (spec.md §9
// "Per-command correlation map... model waiters as one-shot rendezvous
// primitives").
type waiter struct {
	resultCh chan rawResponse
	timer    *time.Timer
}

type rawResponse struct {
	ok     bool
	result json.RawMessage
	errMsg string
}

// Agent is a registered browser worker connection.
type Agent struct {
	ID         string
	conn       *websocket.Conn
	writeMu    sync.Mutex // serializes frame writes; gorilla conns aren't write-concurrent-safe

	mu         sync.Mutex
	status     Status
	lastSeen   time.Time
	currentRun string
	waiters    map[string]*waiter
}

func newAgent(id string, conn *websocket.Conn) *Agent {
	return &Agent{
		ID:       id,
		conn:     conn,
		status:   StatusConnecting,
		lastSeen: time.Now(),
		waiters:  make(map[string]*waiter),
	}
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Agent) touchLastSeen() {
	a.mu.Lock()
	a.lastSeen = time.Now()
	a.mu.Unlock()
}

func (a *Agent) staleSince(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Sub(a.lastSeen) > heartbeatStaleAfter
}

// assignRun marks the agent busy and records the run it's serving
// (spec.md §4.3 "Agent selection... assignRun(agent, runId) to mark busy").
func (a *Agent) assignRun(runID string) {
	a.mu.Lock()
	a.status = StatusBusy
	a.currentRun = runID
	a.mu.Unlock()
}

func (a *Agent) release() {
	a.mu.Lock()
	a.status = StatusIdle
	a.currentRun = ""
	a.mu.Unlock()
}

func (a *Agent) registerWaiter(id string, timeout time.Duration) *waiter {
	w := &waiter{resultCh: make(chan rawResponse, 1)}
	a.mu.Lock()
	a.waiters[id] = w
	a.mu.Unlock()
	w.timer = time.AfterFunc(timeout, func() {
		a.resolveTimeout(id)
	})
	return w
}

func (a *Agent) removeWaiter(id string) {
	a.mu.Lock()
	delete(a.waiters, id)
	a.mu.Unlock()
}

func (a *Agent) resolveTimeout(id string) {
	a.mu.Lock()
	w, ok := a.waiters[id]
	if ok {
		delete(a.waiters, id)
	}
	a.mu.Unlock()
	if ok {
		select {
		case w.resultCh <- rawResponse{ok: false, errMsg: "agent_command_timeout"}:
		default:
		}
	}
}

func (a *Agent) resolveResponse(id string, ok bool, result json.RawMessage, errMsg string) {
	a.mu.Lock()
	w, found := a.waiters[id]
	if found {
		delete(a.waiters, id)
	}
	a.mu.Unlock()
	if !found {
		return
	}
	w.timer.Stop()
	select {
	case w.resultCh <- rawResponse{ok: ok, result: result, errMsg: errMsg}:
	default:
	}
}

// rejectAllWaiters fails every outstanding command with agent_disconnected
// (spec.md §4.3 "Disconnection"; §9 "Dropping a waiter on disconnect must
// mark all of them failed").
func (a *Agent) rejectAllWaiters() {
	a.mu.Lock()
	waiters := a.waiters
	a.waiters = make(map[string]*waiter)
	a.mu.Unlock()

	for _, w := range waiters {
		w.timer.Stop()
		select {
		case w.resultCh <- rawResponse{ok: false, errMsg: "agent_disconnected"}:
		default:
		}
	}
}

func (a *Agent) writeJSON(v any) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteJSON(v)
}
