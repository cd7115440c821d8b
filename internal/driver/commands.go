package driver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/imgutil"
	"github.com/nerovaautomation/nerovaagent/internal/resolver"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

// AgentDriver is a thin, typed wrapper around Send for one Agent, used by
// both internal/loop (navigate/screenshot/scroll/back) and
// internal/resolver (via its Driver interface). Keeping command encoding
// here — not in resolver — lets resolver stay transport-agnostic, per
// spec.md §9's note that the wire shape is the only contract.
type AgentDriver struct {
	Agent *Agent
}

func (d *AgentDriver) send(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	return Send(ctx, d.Agent, command, payload)
}

func (d *AgentDriver) Navigate(ctx context.Context, url string) error {
	_, err := d.send(ctx, protocol.CmdNavigate, map[string]string{"url": url})
	return err
}

func (d *AgentDriver) GoBack(ctx context.Context) error {
	_, err := d.send(ctx, protocol.CmdGoBack, nil)
	return err
}

func (d *AgentDriver) GoForward(ctx context.Context) error {
	_, err := d.send(ctx, protocol.CmdGoForward, nil)
	return err
}

func (d *AgentDriver) Reload(ctx context.Context) error {
	_, err := d.send(ctx, protocol.CmdReload, nil)
	return err
}

// Wait implements the "wait" action (spec.md §4.1); the worker sleeps for
// the requested duration and replies once elapsed.
func (d *AgentDriver) Wait(ctx context.Context, dur time.Duration) error {
	_, err := d.send(ctx, protocol.CmdWait, map[string]int64{"ms": dur.Milliseconds()})
	return err
}

// KeyPress sends a single named key (e.g. "Escape", "Tab") to the worker —
// distinct from PressEnter/ClearActiveInput, which are their own named
// commands for the Click Resolver's post-click effects (spec.md §4.3).
func (d *AgentDriver) KeyPress(ctx context.Context, key string) error {
	_, err := d.send(ctx, protocol.CmdKeyPress, map[string]string{"key": key})
	return err
}

func (d *AgentDriver) ExtractDOM(ctx context.Context) (string, error) {
	raw, err := d.send(ctx, protocol.CmdExtractDOM, nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	return payload.HTML, nil
}

// Screenshot returns the raw PNG bytes (the worker responds with base64;
// this unwraps it once here so every caller deals in bytes).
func (d *AgentDriver) Screenshot(ctx context.Context) ([]byte, error) {
	raw, err := d.send(ctx, protocol.CmdScreenshot, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Base64 string `json:"base64"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return imgutil.DecodeMaybeDataURL(payload.Base64)
}

type scrollPayload struct {
	Direction string `json:"direction"`
	DeltaPx   int    `json:"deltaPx"`
}

func (d *AgentDriver) ScrollUniversal(ctx context.Context, direction string, deltaPx int) error {
	_, err := d.send(ctx, protocol.CmdScroll, scrollPayload{Direction: direction, DeltaPx: deltaPx})
	return err
}

// resolver.Driver implementation — so a *AgentDriver can be passed
// directly to resolver.Resolve.

func (d *AgentDriver) Hittables(ctx context.Context) ([]resolver.Hittable, error) {
	raw, err := d.send(ctx, protocol.CmdHittables, nil)
	if err != nil {
		return nil, err
	}
	var hittables []resolver.Hittable
	if err := json.Unmarshal(raw, &hittables); err != nil {
		return nil, err
	}
	return hittables, nil
}

func (d *AgentDriver) ClickViewport(ctx context.Context, vx, vy float64) error {
	_, err := d.send(ctx, protocol.CmdClick, map[string]float64{"vx": vx, "vy": vy})
	return err
}

func (d *AgentDriver) ClearActiveInput(ctx context.Context) error {
	_, err := d.send(ctx, protocol.CmdClearActiveInput, nil)
	return err
}

func (d *AgentDriver) TypeChar(ctx context.Context, ch rune) error {
	_, err := d.send(ctx, protocol.CmdType, map[string]string{"text": string(ch)})
	return err
}

func (d *AgentDriver) PressEnter(ctx context.Context) error {
	_, err := d.send(ctx, protocol.CmdPressEnter, nil)
	return err
}
