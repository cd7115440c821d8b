package runstate

import (
	"log/slog"
	"strings"
)

// PromptAssembler recomputes basePrompt + "\n\nContext:\n" + contexts
// joined by "\n---\n" (spec.md §4.1 step 3a), but only when the
// (basePrompt, contexts) tuple actually changed since the last call —
// matching the "recompute only when the tuple changes; log a
// context_override_update event on change" design note in spec.md §9.
type PromptAssembler struct {
	basePrompt string
	logger     *slog.Logger

	lastContexts []string
	lastResult   string
	computed     bool
}

func NewPromptAssembler(basePrompt string, logger *slog.Logger) *PromptAssembler {
	return &PromptAssembler{basePrompt: basePrompt, logger: logger}
}

// Effective returns the assembled prompt for the given context slice,
// recomputing only if contexts differ from the previous call.
func (p *PromptAssembler) Effective(contexts []string) string {
	if p.computed && sameContexts(p.lastContexts, contexts) {
		return p.lastResult
	}

	result := p.basePrompt
	if len(contexts) > 0 {
		result = p.basePrompt + "\n\nContext:\n" + strings.Join(contexts, "\n---\n")
	}

	p.lastContexts = append([]string(nil), contexts...)
	p.lastResult = result
	p.computed = true

	if p.logger != nil {
		p.logger.Info("context_override_update", "contexts", len(contexts))
	}
	return result
}

func sameContexts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
