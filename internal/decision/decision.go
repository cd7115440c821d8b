// Package decision models the Critic/Assistant response as a tagged variant
// over the allowed action values, parsed permissively per spec.md §9.
package decision

import (
	"encoding/json"
	"strings"
)

// Action is the discriminant of a Decision.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionClick    Action = "click_by_text_role"
	ActionScroll   Action = "scroll"
	ActionBack     Action = "back"
	ActionNavigate Action = "navigate"
	ActionResend   Action = "resend"
	ActionStop     Action = "stop"
)

// Hints narrows the candidate pool for the click resolver.
type Hints struct {
	TextExact    []string `json:"text_exact,omitempty"`
	TextContains []string `json:"text_contains,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Text         []string `json:"text,omitempty"`
}

// Target is the conditional payload for click_by_text_role / accept.
type Target struct {
	ID      string   `json:"id,omitempty"`
	Type    string   `json:"type,omitempty"`
	Center  []float64 `json:"center,omitempty"` // [vx, vy] CSS-viewport px
	Hints   Hints    `json:"hints"`
	Content string   `json:"content,omitempty"`
	Clear   bool     `json:"clear,omitempty"`
	Submit  bool     `json:"submit,omitempty"`
	Role    string   `json:"role,omitempty"`
	Radius  float64  `json:"radius,omitempty"`
}

// Scroll is the conditional payload for the scroll action.
type Scroll struct {
	Direction string `json:"direction"` // up | down
	Pages     int    `json:"pages,omitempty"`
	Amount    int    `json:"amount,omitempty"`
}

// completeField accepts either a bare string or an array of strings, since
// the Critic is observed to emit both shapes for the "complete" field.
type completeField []string

func (c *completeField) UnmarshalJSON(data []byte) error {
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err == nil {
		*c = asSlice
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return err
	}
	if asString == "" {
		*c = nil
	} else {
		*c = []string{asString}
	}
	return nil
}

// Decision is the parsed Critic/Assistant JSON response (spec.md §3).
type Decision struct {
	Action     Action        `json:"action"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Continue   bool          `json:"continue"`
	Complete   completeField `json:"complete,omitempty"`

	Target *Target `json:"target,omitempty"`
	Scroll *Scroll `json:"scroll,omitempty"`
	URL    string  `json:"url,omitempty"`

	// NewContext/Keep let the Critic steer the override-context slot
	// (spec.md §4.1 step 3c).
	NewContext string `json:"new_context,omitempty"`
	Keep       bool    `json:"keep,omitempty"`

	// RawUnknown preserves the full payload for logging when Action is not
	// one of the known values (spec.md §9: "parse permissively").
	RawUnknown json.RawMessage `json:"-"`

	// Known reports whether Action was a recognized value.
	Known bool `json:"-"`
}

var knownActions = map[Action]bool{
	ActionAccept: true, ActionClick: true, ActionScroll: true,
	ActionBack: true, ActionNavigate: true, ActionResend: true, ActionStop: true,
}

// Parse decodes raw into a Decision. It never errors on an unrecognized
// action value — Known is set false and RawUnknown retains the payload for
// the caller to log, per the "unknown actions → halt" guidance in spec.md
// §9; a structurally invalid JSON payload (not even an object) still
// errors, since there's nothing to route permissively there.
func Parse(raw []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	d.Known = knownActions[d.Action]
	if !d.Known {
		d.RawUnknown = append(json.RawMessage(nil), raw...)
	}
	return &d, nil
}

// Normalize collapses whitespace and lowercases x (spec.md §8 invariant 3).
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(x string) string {
	fields := strings.Fields(x)
	return strings.ToLower(strings.Join(fields, " "))
}

// ExtractCompletes merges d.Complete into history, deduplicating
// case-insensitively on the normalized form while retaining first-seen
// casing and order, appending genuinely new items at the end (spec.md §8
// invariant 1). Calling it twice with the same d and the result of the
// first call is a no-op — idempotent by construction, since nothing in
// d.Complete is new to the returned history after the first merge.
func ExtractCompletes(d *Decision, history []string) []string {
	seen := make(map[string]bool, len(history))
	out := make([]string, len(history))
	copy(out, history)
	for _, h := range out {
		seen[Normalize(h)] = true
	}
	if d == nil {
		return out
	}
	for _, c := range d.Complete {
		key := Normalize(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
