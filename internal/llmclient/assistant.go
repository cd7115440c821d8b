package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nerovaautomation/nerovaagent/internal/imgutil"
)

// AssistantResult is the disambiguation outcome the resolver consumes
// (spec.md §4.4, §5 step 7 "Assistant fallback").
type AssistantResult struct {
	Action      string
	Reason      string
	Confidence  float64
	Center      [2]float64
	CandidateID string
}

// CallAssistant dispatches to the chat-completions fallback or the
// Assistants-API polling mode depending on whether assistantID is set
// (spec.md §4.4 "two supported integration modes").
func (c *Client) CallAssistant(ctx context.Context, model, assistantID, apiKey string, payload AssistantPayload, screenshotPNG []byte, pollTimeout time.Duration) (*AssistantResult, error) {
	if assistantID != "" {
		return c.callAssistantAPI(ctx, assistantID, apiKey, payload, screenshotPNG, pollTimeout)
	}
	return c.callAssistantChat(ctx, model, apiKey, payload, screenshotPNG)
}

func (c *Client) callAssistantChat(ctx context.Context, model, apiKey string, payload AssistantPayload, screenshotPNG []byte) (*AssistantResult, error) {
	if err := c.assistantLimiter.Wait(ctx); err != nil {
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
			{"role": "system", "content": systemPromptActionDisambiguator},
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
		return nil, err
	}
	defer respBody.Close()

	var chatResp chatCompletionsResponse
	if err := json.NewDecoder(respBody).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("llmclient: decode assistant response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return &AssistantResult{Action: "unknown"}, nil
	}

	return parseAssistantContent(stripCodeFences(chatResp.Choices[0].Message.Content))
}

type assistantWire struct {
	Action      string     `json:"action"`
	Reason      string     `json:"reason"`
	Confidence  float64    `json:"confidence"`
	Center      [2]float64 `json:"center"`
	CandidateID string     `json:"candidate_id"`
}

func parseAssistantContent(raw string) (*AssistantResult, error) {
	if raw == "" {
		return &AssistantResult{Action: "unknown"}, nil
	}
	var w assistantWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return &AssistantResult{Action: "unknown", Reason: "malformed assistant response"}, nil
	}
	return &AssistantResult{
		Action:      w.Action,
		Reason:      w.Reason,
		Confidence:  w.Confidence,
		Center:      w.Center,
		CandidateID: w.CandidateID,
	}, nil
}

// callAssistantAPI implements the Assistants-API polling mode (spec.md
// §4.4): upload the screenshot, create a thread with the payload as the
// message text plus the uploaded image, run the assistant, and poll
// until terminal or pollTimeout elapses.
func (c *Client) callAssistantAPI(ctx context.Context, assistantID, apiKey string, payload AssistantPayload, screenshotPNG []byte, pollTimeout time.Duration) (*AssistantResult, error) {
	if err := c.assistantLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	fileID, err := c.uploadImage(ctx, apiKey, screenshotPNG)
	if err != nil {
		return nil, fmt.Errorf("llmclient: upload assistant image: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	threadID, err := c.createThread(ctx, apiKey, string(payloadJSON), fileID)
	if err != nil {
		return nil, fmt.Errorf("llmclient: create assistant thread: %w", err)
	}

	runID, err := c.createRun(ctx, apiKey, threadID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("llmclient: create assistant run: %w", err)
	}

	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	if err := c.pollRun(pollCtx, apiKey, threadID, runID); err != nil {
		return nil, err
	}

	content, err := c.latestAssistantMessage(ctx, apiKey, threadID)
	if err != nil {
		return nil, err
	}
	return parseAssistantContent(stripCodeFences(content))
}

func (c *Client) uploadImage(ctx context.Context, apiKey string, screenshotPNG []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "vision"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", "screenshot.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(screenshotPNG); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", &HTTPError{Status: resp.StatusCode, Body: string(b)}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) createThread(ctx context.Context, apiKey, text, fileID string) (string, error) {
	body := map[string]any{
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": text},
				},
				"attachments": []map[string]any{
					{"file_id": fileID, "tools": []map[string]string{{"type": "file_search"}}},
				},
			},
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, apiKey, "/threads", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) createRun(ctx context.Context, apiKey, threadID, assistantID string) (string, error) {
	body := map[string]any{"assistant_id": assistantID}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, apiKey, "/threads/"+threadID+"/runs", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) pollRun(ctx context.Context, apiKey, threadID, runID string) error {
	ticker := time.NewTicker(750 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("llmclient: assistant run poll timed out: %w", ctx.Err())
		case <-ticker.C:
			var out struct {
				Status string `json:"status"`
			}
			if err := c.getJSON(ctx, apiKey, "/threads/"+threadID+"/runs/"+runID, &out); err != nil {
				return err
			}
			switch out.Status {
			case "completed":
				return nil
			case "failed", "cancelled", "expired":
				return fmt.Errorf("llmclient: assistant run ended with status %q", out.Status)
			}
		}
	}
}

func (c *Client) latestAssistantMessage(ctx context.Context, apiKey, threadID string) (string, error) {
	var out struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, apiKey, "/threads/"+threadID+"/messages?limit=5", &out); err != nil {
		return "", err
	}
	for _, msg := range out.Data {
		if msg.Role == "assistant" && len(msg.Content) > 0 {
			return msg.Content[0].Text.Value, nil
		}
	}
	return "", nil
}

func (c *Client) postJSON(ctx context.Context, apiKey, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(b), RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
