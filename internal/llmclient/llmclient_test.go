package llmclient

import (
	"errors"
	"testing"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

func TestResolveCriticKeyPrefersExplicit(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	got, err := ResolveCriticKey("explicit-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "explicit-key" {
		t.Fatalf("got %q, want explicit-key", got)
	}
}

func TestResolveCriticKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("CRITIC_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "shared-key")
	t.Setenv("NEROVA_AGENT_CRITIC_KEY", "")
	got, err := ResolveCriticKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "shared-key" {
		t.Fatalf("got %q, want shared-key", got)
	}
}

func TestResolveAssistantKeyMissingReturnsTypedError(t *testing.T) {
	t.Setenv("RETRIEVER_OPENAI_KEY", "")
	t.Setenv("NANO_OPENAI_KEY", "")
	t.Setenv("NEROVA_AGENT_ASSISTANT_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := ResolveAssistantKey("")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var nErr *nerovaerr.Error
	if !errors.As(err, &nErr) {
		t.Fatalf("expected *nerovaerr.Error, got %T", err)
	}
	if nErr.Code != nerovaerr.KeyMissing("assistant") {
		t.Fatalf("unexpected code: %v", nErr.Code)
	}
}

func TestStripCodeFencesPlainJSON(t *testing.T) {
	in := `{"action":"accept"}`
	if got := stripCodeFences(in); got != in {
		t.Fatalf("got %q, want %q", got, in)
	}
}

func TestStripCodeFencesJSONTagged(t *testing.T) {
	in := "```json\n{\"action\":\"accept\"}\n```"
	want := `{"action":"accept"}`
	if got := stripCodeFences(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripCodeFencesBareFence(t *testing.T) {
	in := "```\n{\"action\":\"scroll\"}\n```"
	want := `{"action":"scroll"}`
	if got := stripCodeFences(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLastNTrimsToTail(t *testing.T) {
	history := make([]string, 25)
	for i := range history {
		history[i] = string(rune('a' + i%26))
	}
	got := LastN(history, 20)
	if len(got) != 20 {
		t.Fatalf("got len %d, want 20", len(got))
	}
	if got[len(got)-1] != history[len(history)-1] {
		t.Fatalf("tail mismatch: got %q want %q", got[len(got)-1], history[len(history)-1])
	}
}

func TestLastNNoOpWhenUnderLimit(t *testing.T) {
	history := []string{"one", "two"}
	got := LastN(history, 20)
	if len(got) != 2 {
		t.Fatalf("got len %d, want 2", len(got))
	}
}

func TestParseAssistantContentMalformedIsUnknown(t *testing.T) {
	res, err := parseAssistantContent("not json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != "unknown" {
		t.Fatalf("got action %q, want unknown", res.Action)
	}
}

func TestParseAssistantContentEmptyIsUnknown(t *testing.T) {
	res, err := parseAssistantContent("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != "unknown" {
		t.Fatalf("got action %q, want unknown", res.Action)
	}
}

func TestParseAssistantContentWellFormed(t *testing.T) {
	raw := `{"action":"click","reason":"matches label","confidence":0.9,"center":[10.5,20.5],"candidate_id":"c3"}`
	res, err := parseAssistantContent(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != "click" || res.CandidateID != "c3" || res.Confidence != 0.9 {
		t.Fatalf("unexpected parse result: %+v", res)
	}
	if res.Center[0] != 10.5 || res.Center[1] != 20.5 {
		t.Fatalf("unexpected center: %v", res.Center)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.apiBase != defaultAPIBase {
		t.Fatalf("got apiBase %q, want %q", c.apiBase, defaultAPIBase)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestNewClientWithAPIBaseOption(t *testing.T) {
	c := NewClient(WithAPIBase("https://example.test/v1"))
	if c.apiBase != "https://example.test/v1" {
		t.Fatalf("got apiBase %q", c.apiBase)
	}
}
