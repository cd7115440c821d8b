package driver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

func newAgentID() string { return uuid.NewString() }

// defaultCommandTimeout and the per-command overrides spec.md §4.3 names.
const (
	defaultCommandTimeout   = 15 * time.Second
	screenshotTimeout       = 20 * time.Second
	clickOrTypeTimeout      = 5 * time.Second
)

// timeoutFor returns the per-command timeout override (spec.md §4.3
// "Correlation").
func timeoutFor(command string) time.Duration {
	switch command {
	case protocol.CmdScreenshot:
		return screenshotTimeout
	case protocol.CmdClick, protocol.CmdType, protocol.CmdKeyPress, protocol.CmdClearActiveInput, protocol.CmdPressEnter:
		return clickOrTypeTimeout
	default:
		return defaultCommandTimeout
	}
}

// Send issues command with payload to agent, registers a correlation
// waiter keyed by a fresh id, and blocks until RESPONSE arrives, the
// per-command timeout elapses, the agent disconnects, or ctx is
// cancelled — in which case the caller's Supervisor token classifies the
// cause (spec.md §4.3 "Correlation"; §9 "Cancellable I/O").
func Send(ctx context.Context, agent *Agent, command string, payload any) (json.RawMessage, error) {
	var rawPayload json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rawPayload = encoded
	}

	id := uuid.NewString()
	w := agent.registerWaiter(id, timeoutFor(command))

	frame := commandFrame{Type: frameCommand, ID: id, Command: command, Payload: rawPayload}
	if err := agent.writeJSON(frame); err != nil {
		agent.removeWaiter(id)
		return nil, nerovaerr.Wrap(nerovaerr.CodeAgentSocketNotOpen, "write command", err)
	}

	select {
	case resp := <-w.resultCh:
		if !resp.ok {
			code := nerovaerr.CodeAgentCommandTimeout
			if resp.errMsg == "agent_disconnected" {
				code = nerovaerr.CodeAgentDisconnected
			}
			return nil, nerovaerr.New(code, resp.errMsg)
		}
		return resp.result, nil
	case <-ctx.Done():
		agent.removeWaiter(id)
		return nil, ctx.Err()
	}
}
