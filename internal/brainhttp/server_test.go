package brainhttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
)

type fakeCritic struct {
	decisions []*decision.Decision
	calls     int
}

func (f *fakeCritic) CallBootstrapCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte) (*llmclient.CriticResult, error) {
	return f.next()
}

func (f *fakeCritic) CallCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, shot []byte, pw *llmclient.PlanWindow) (*llmclient.CriticResult, error) {
	return f.next()
}

func (f *fakeCritic) next() (*llmclient.CriticResult, error) {
	i := f.calls
	f.calls++
	if i >= len(f.decisions) {
		return &llmclient.CriticResult{}, nil
	}
	return &llmclient.CriticResult{Decision: f.decisions[i], Raw: "raw-" + string(rune('a'+i))}, nil
}

type fakeAssistant struct {
	result *llmclient.AssistantResult
}

func (f *fakeAssistant) CallAssistant(ctx context.Context, model, assistantID, apiKey string, payload llmclient.AssistantPayload, shot []byte, pollTimeout time.Duration) (*llmclient.AssistantResult, error) {
	return f.result, nil
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func postJSON(t *testing.T, mux http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(&fakeCritic{}, &fakeAssistant{})
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ready" || body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestCriticStepRejectsUnsupportedMode(t *testing.T) {
	s := New(&fakeCritic{}, &fakeAssistant{})
	rec := postJSON(t, s.BuildMux(), "/v1/brain/critic", map[string]any{
		"mode": "desktop", "prompt": "do something", "screenshot": b64("png-bytes"),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if errStr, _ := body["error"].(string); !strings.Contains(errStr, "unsupported_mode_desktop") {
		t.Fatalf("error = %q, want it to mention unsupported_mode_desktop", errStr)
	}
}

func TestCriticStepRejectsMissingPrompt(t *testing.T) {
	s := New(&fakeCritic{}, &fakeAssistant{})
	rec := postJSON(t, s.BuildMux(), "/v1/brain/bootstrap", map[string]any{
		"mode": "browser", "screenshot": b64("png-bytes"),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCriticStepMergesHistoryAcrossCallsWithSameSession(t *testing.T) {
	critic := &fakeCritic{decisions: []*decision.Decision{
		{Action: decision.ActionResend, Complete: []string{"Step One"}},
		{Action: decision.ActionStop, Complete: []string{"step one", "Step Two"}},
	}}
	s := New(critic, &fakeAssistant{})
	mux := s.BuildMux()

	first := postJSON(t, mux, "/v1/brain/critic", map[string]any{
		"mode": "browser", "prompt": "book a flight", "screenshot": b64("shot1"), "sessionId": "sess-1", "criticKey": "test-critic-key",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first call status = %d, body = %s", first.Code, first.Body.String())
	}
	var firstResp criticResponse
	if err := json.Unmarshal(first.Body.Bytes(), &firstResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(firstResp.CompleteHistory) != 1 || firstResp.CompleteHistory[0] != "Step One" {
		t.Fatalf("completeHistory after first call = %v", firstResp.CompleteHistory)
	}

	second := postJSON(t, mux, "/v1/brain/critic", map[string]any{
		"mode": "browser", "prompt": "book a flight", "screenshot": b64("shot2"), "sessionId": "sess-1", "criticKey": "test-critic-key",
	})
	var secondResp criticResponse
	if err := json.Unmarshal(second.Body.Bytes(), &secondResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(secondResp.CompleteHistory) != 2 {
		t.Fatalf("completeHistory after second call = %v, want 2 deduplicated entries", secondResp.CompleteHistory)
	}
	if secondResp.CompleteHistory[0] != "Step One" || secondResp.CompleteHistory[1] != "Step Two" {
		t.Fatalf("completeHistory = %v, want first-seen casing preserved and no duplicate", secondResp.CompleteHistory)
	}
}

func TestAssistantHappyPath(t *testing.T) {
	assistant := &fakeAssistant{result: &llmclient.AssistantResult{Action: "click", CandidateID: "btn-1", Confidence: 0.9}}
	s := New(&fakeCritic{}, assistant)

	rec := postJSON(t, s.BuildMux(), "/v1/brain/assistant", map[string]any{
		"mode": "browser", "prompt": "click continue", "screenshot": b64("shot"), "assistantKey": "test-assistant-key",
		"elements": []map[string]any{{"id": "btn-1", "name": "Continue", "role": "button", "center": []float64{10, 20}}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp assistantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Assistant.Parsed.CandidateID != "btn-1" {
		t.Fatalf("resp = %+v", resp)
	}
}
