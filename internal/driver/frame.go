package driver

import "encoding/json"

// frameType discriminates the small set of message shapes exchanged over
// the agent-pool transport (spec.md §4.3 "Transport").
type frameType string

const (
	frameCommand      frameType = "COMMAND"
	frameHandshake    frameType = "HANDSHAKE"
	frameHandshakeAck frameType = "HANDSHAKE_ACK"
	frameWelcome      frameType = "WELCOME"
	framePing         frameType = "PING"
	framePong         frameType = "PONG"
	frameResponse     frameType = "RESPONSE"
	frameEvent        frameType = "EVENT"
	frameLog          frameType = "LOG"
	frameStatus       frameType = "STATUS"
)

// inboundFrame is the generic envelope decoded off the wire before
// dispatching on Type.
type inboundFrame struct {
	Type    frameType       `json:"type"`
	AgentID string          `json:"agentId,omitempty"`
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  string          `json:"status,omitempty"`
}

// commandFrame is what the driver sends to request work (spec.md §4.3:
// "{type: COMMAND, id, command, payload}").
type commandFrame struct {
	Type    frameType       `json:"type"`
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type welcomeFrame struct {
	Type    frameType `json:"type"`
	AgentID string    `json:"agentId"`
}
