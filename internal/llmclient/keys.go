package llmclient

import (
	"os"
	"strings"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

// ResolveCriticKey implements spec.md §4.4 "Key resolution" for the
// critic role: explicit override → role-specific env var → shared env
// var, first non-empty trimmed value wins.
func ResolveCriticKey(explicit string) (string, error) {
	return resolveKey("critic", explicit, "CRITIC_OPENAI_KEY", "OPENAI_API_KEY", "NEROVA_AGENT_CRITIC_KEY")
}

// ResolveAssistantKey implements the same chain for the assistant role
// (spec.md §6's env var table).
func ResolveAssistantKey(explicit string) (string, error) {
	return resolveKey("assistant", explicit, "RETRIEVER_OPENAI_KEY", "NANO_OPENAI_KEY", "NEROVA_AGENT_ASSISTANT_KEY", "OPENAI_API_KEY")
}

func resolveKey(role, explicit string, envVars ...string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}
	for _, name := range envVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", nerovaerr.New(nerovaerr.KeyMissing(role), role+" API key not configured")
}
