package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nerovaautomation/nerovaagent/internal/decision"
	"github.com/nerovaautomation/nerovaagent/internal/imgutil"
	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

// CriticResult is what a Critic/Bootstrap call returns: the parsed
// Decision (nil if the response had none — spec.md §9 "critic.parsed
// absent" vs "null decision" open question, kept distinguishable via Raw),
// and the raw content string for journaling.
type CriticResult struct {
	Decision *decision.Decision
	Raw      string
}

// CallCritic implements spec.md §4.4 "Critic call" — the full iteration
// variant with plan_window.
func (c *Client) CallCritic(ctx context.Context, model, apiKey string, payload CriticPayload, screenshotPNG []byte, planWindow *PlanWindow) (*CriticResult, error) {
	payload.PlanWindow = planWindow
	return c.callChatJSON(ctx, c.criticLimiter, model, apiKey, systemPromptCritic, payload, screenshotPNG)
}

// CallBootstrapCritic implements the bootstrap variant: "URL Bootstrap
// Critic" system prompt, plan_window omitted (spec.md §4.4).
func (c *Client) CallBootstrapCritic(ctx context.Context, model, apiKey string, payload CriticPayload, screenshotPNG []byte) (*CriticResult, error) {
	payload.PlanWindow = nil
	return c.callChatJSON(ctx, c.criticLimiter, model, apiKey, systemPromptBootstrapCritic, payload, screenshotPNG)
}

func (c *Client) callChatJSON(ctx context.Context, limiter interface {
	Wait(context.Context) error
}, model, apiKey, systemPrompt string, payload any, screenshotPNG []byte) (*CriticResult, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"model":           model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": string(payloadJSON)},
				{"type": "image_url", "image_url": map[string]string{"url": imgutil.ToPNGDataURL(screenshotPNG)}},
			}},
		},
	}

	respBody, err := RetryDo(ctx, c.retry, func() (io.ReadCloser, error) {
		return c.doRequest(ctx, apiKey, body)
	})
	if err != nil {
		if httpErr := asHTTPError(err); httpErr != nil {
			return nil, nerovaerr.New(nerovaerr.CriticHTTP(httpErr.Status), httpErr.Body)
		}
		return nil, err
	}
	defer respBody.Close()

	var chatResp chatCompletionsResponse
	if err := json.NewDecoder(respBody).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("llmclient: decode critic response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return &CriticResult{}, nil // "critic.parsed absent" path (spec.md §9)
	}

	raw := stripCodeFences(chatResp.Choices[0].Message.Content)
	if raw == "" {
		return &CriticResult{Raw: raw}, nil
	}

	d, err := decision.Parse([]byte(raw))
	if err != nil {
		// Malformed JSON is the "null decision" path (spec.md §9): resend,
		// but keep the raw text for the journal.
		return &CriticResult{Raw: raw}, nil
	}
	return &CriticResult{Decision: d, Raw: raw}, nil
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) doRequest(ctx context.Context, apiKey string, body any) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llmclient: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmclient: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody), RetryAfter: retryAfter}
	}
	return resp.Body, nil
}
