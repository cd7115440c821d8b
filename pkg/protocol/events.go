package protocol

// WebSocket event names pushed from the brain to control-plane subscribers.
const (
	EventRun       = "run"
	EventHealth    = "health"
	EventHeartbeat = "heartbeat"
	EventShutdown  = "shutdown"
)

// Run event subtypes (in payload.type).
const (
	RunEventStarted       = "run.started"
	RunEventIterationDone = "run.iteration"
	RunEventPaused        = "run.paused"
	RunEventResumed       = "run.resumed"
	RunEventAborted       = "run.aborted"
	RunEventCompleted     = "run.completed"
	RunEventFailed        = "run.failed"
)

// Agent (worker) lifecycle event subtypes, fan-out to anyone watching the
// pool (spec.md §4.3 disconnection semantics).
const (
	AgentEventConnected    = "agent.connected"
	AgentEventDisconnected = "agent.disconnected"
	AgentEventHeartbeat    = "agent.heartbeat"
)
