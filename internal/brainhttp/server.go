// Package brainhttp implements the stateless brain HTTP surface spec.md §6
// specifies: single-shot Critic/Bootstrap/Assistant calls over plain JSON
// POST, independent of internal/loop's stateful multi-step Control Loop.
// A caller drives the bootstrap/critic/assistant sequence itself, one HTTP
// request per step, supplying sessionId to let completeHistory accumulate
// across calls.
package brainhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/imgutil"
	"github.com/nerovaautomation/nerovaagent/internal/llmclient"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
	"github.com/nerovaautomation/nerovaagent/pkg/protocol"
)

const modeBrowser = "browser"

// CriticCaller is the subset of *internal/llmclient.Client this surface needs.
type CriticCaller interface {
	CallCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, screenshotPNG []byte, planWindow *llmclient.PlanWindow) (*llmclient.CriticResult, error)
	CallBootstrapCritic(ctx context.Context, model, apiKey string, payload llmclient.CriticPayload, screenshotPNG []byte) (*llmclient.CriticResult, error)
}

// AssistantCaller is the subset needed for disambiguation calls.
type AssistantCaller interface {
	CallAssistant(ctx context.Context, model, assistantID, apiKey string, payload llmclient.AssistantPayload, screenshotPNG []byte, pollTimeout time.Duration) (*llmclient.AssistantResult, error)
}

// Server holds everything the three brain handlers need: the Critic/
// Assistant callers, their default models/keys, and a small in-memory
// sessionId → completeHistory map (spec.md §5's "sessionId adoption"
// ordering guarantee, scoped to this process rather than persisted).
type Server struct {
	Critic    CriticCaller
	Assistant AssistantCaller

	CriticModel    string
	AssistantModel string
	CriticKey      string
	AssistantKey   string
	AssistantID    string

	Logger *slog.Logger

	mu       sync.Mutex
	sessions map[string][]string
}

func New(critic CriticCaller, assistant AssistantCaller) *Server {
	return &Server{
		Critic:    critic,
		Assistant: assistant,
		Logger:    slog.Default(),
		sessions:  make(map[string][]string),
	}
}

// BuildMux registers the four brain endpoints on a fresh ServeMux, following
// the teacher's net/http.ServeMux-only convention for this surface (no web
// framework).
func (s *Server) BuildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/brain/bootstrap", s.handleCriticStep(true))
	mux.HandleFunc("POST /v1/brain/critic", s.handleCriticStep(false))
	mux.HandleFunc("POST /v1/brain/assistant", s.handleAssistant)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ready", "protocol": protocol.ProtocolVersion})
}

type criticRequest struct {
	Mode       string `json:"mode"`
	Prompt     string `json:"prompt"`
	Screenshot string `json:"screenshot"`
	SessionID  string `json:"sessionId,omitempty"`
	CriticKey  string `json:"criticKey,omitempty"`
	Model      string `json:"model,omitempty"`
}

type criticResponse struct {
	OK              bool               `json:"ok"`
	Mode            string             `json:"mode"`
	SessionID       string             `json:"sessionId,omitempty"`
	Decision        *decision.Decision `json:"decision,omitempty"`
	Critic          string             `json:"critic,omitempty"`
	CompleteHistory []string           `json:"completeHistory"`
}

// handleCriticStep serves both /v1/brain/bootstrap and /v1/brain/critic —
// spec.md §6 gives them an identical request/response shape, differing only
// in which Critic system prompt answers the call.
func (s *Server) handleCriticStep(bootstrap bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req criticRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 20<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodePromptRequired, "invalid JSON body"))
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodePromptRequired, "prompt must not be empty"))
			return
		}
		if strings.TrimSpace(req.Mode) != modeBrowser {
			writeError(w, http.StatusBadRequest, nerovaerr.UnsupportedMode(req.Mode))
			return
		}
		if req.Screenshot == "" {
			writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodeScreenshotRequired, "screenshot must not be empty"))
			return
		}
		shot, err := imgutil.DecodeMaybeDataURL(req.Screenshot)
		if err != nil {
			writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodeScreenshotRequired, "screenshot is not valid base64"))
			return
		}

		model := firstNonEmpty(req.Model, s.CriticModel)
		apiKey, err := llmclient.ResolveCriticKey(firstNonEmpty(req.CriticKey, s.CriticKey))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		history := s.historyFor(req.SessionID)
		payload := llmclient.CriticPayload{
			Goal:            llmclient.Goal{OriginalPrompt: req.Prompt},
			CompleteHistory: llmclient.LastN(history, 20),
		}

		var result *llmclient.CriticResult
		if bootstrap {
			result, err = s.Critic.CallBootstrapCritic(r.Context(), model, apiKey, payload, shot)
		} else {
			result, err = s.Critic.CallCritic(r.Context(), model, apiKey, payload, shot, nil)
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}

		merged := decision.ExtractCompletes(result.Decision, history)
		s.setHistory(req.SessionID, merged)

		writeJSON(w, http.StatusOK, criticResponse{
			OK:              true,
			Mode:            modeBrowser,
			SessionID:       req.SessionID,
			Decision:        result.Decision,
			Critic:          result.Raw,
			CompleteHistory: merged,
		})
	}
}

type assistantRequest struct {
	Mode          string                    `json:"mode"`
	Prompt        string                    `json:"prompt"`
	Target        json.RawMessage           `json:"target"`
	Elements      []llmclient.CandidateView `json:"elements"`
	Screenshot    string                    `json:"screenshot"`
	AssistantKey  string                    `json:"assistantKey,omitempty"`
	AssistantID   string                    `json:"assistantId,omitempty"`
	PollTimeoutMs int                       `json:"pollTimeoutMs,omitempty"`
}

type assistantResultView struct {
	OK      bool                       `json:"ok"`
	Raw     string                     `json:"raw"`
	Parsed  *llmclient.AssistantResult `json:"parsed"`
	Request llmclient.AssistantPayload `json:"request"`
	Model   string                     `json:"model"`
}

type assistantResponse struct {
	OK        bool                 `json:"ok"`
	Mode      string               `json:"mode"`
	Assistant assistantResultView  `json:"assistant"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 20<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodePromptRequired, "invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodePromptRequired, "prompt must not be empty"))
		return
	}
	if strings.TrimSpace(req.Mode) != modeBrowser {
		writeError(w, http.StatusBadRequest, nerovaerr.UnsupportedMode(req.Mode))
		return
	}
	if req.Screenshot == "" {
		writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodeScreenshotRequired, "screenshot must not be empty"))
		return
	}
	shot, err := imgutil.DecodeMaybeDataURL(req.Screenshot)
	if err != nil {
		writeError(w, http.StatusBadRequest, nerovaerr.New(nerovaerr.CodeScreenshotRequired, "screenshot is not valid base64"))
		return
	}

	apiKey, err := llmclient.ResolveAssistantKey(firstNonEmpty(req.AssistantKey, s.AssistantKey))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	assistantID := firstNonEmpty(req.AssistantID, s.AssistantID)
	pollTimeout := time.Duration(req.PollTimeoutMs) * time.Millisecond
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}

	payload := llmclient.AssistantPayload{Goal: req.Prompt, Target: decodeTarget(req.Target), Candidates: req.Elements}

	result, err := s.Assistant.CallAssistant(r.Context(), s.AssistantModel, assistantID, apiKey, payload, shot, pollTimeout)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	raw, _ := json.Marshal(result)
	writeJSON(w, http.StatusOK, assistantResponse{
		OK:   true,
		Mode: modeBrowser,
		Assistant: assistantResultView{
			OK:      true,
			Raw:     string(raw),
			Parsed:  result,
			Request: payload,
			Model:   s.AssistantModel,
		},
	})
}

func decodeTarget(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func (s *Server) historyFor(sessionID string) []string {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessions[sessionID]...)
}

func (s *Server) setHistory(sessionID string, history []string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = history
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}
