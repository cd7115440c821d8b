// Package llmclient implements the Critic and Assistant HTTP contracts
// (spec.md §4.4), adapting the teacher's internal/providers
// (bare net/http.Client, hand-built JSON bodies, RetryConfig/RetryDo,
// HTTPError with Retry-After parsing) to the OpenAI chat-completions wire
// format the spec requires, plus the Assistants-API polling mode.
package llmclient

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIBase = "https://api.openai.com/v1"

// Client calls the Critic and Assistant endpoints. One Client is shared
// across runs, and so are its rate limiters: one for Critic calls and one
// for Assistant calls, each capping the request rate of all runs together
// so a runaway iteration loop cannot hammer the provider (SPEC_FULL.md
// §4.1 addition).
type Client struct {
	httpClient *http.Client
	retry      RetryConfig
	apiBase    string

	criticLimiter    *rate.Limiter
	assistantLimiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRateLimits(criticRPS, assistantRPS rate.Limit, burst int) Option {
	return func(c *Client) {
		c.criticLimiter = rate.NewLimiter(criticRPS, burst)
		c.assistantLimiter = rate.NewLimiter(assistantRPS, burst)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: 60 * time.Second},
		retry:            DefaultRetryConfig(),
		apiBase:          defaultAPIBase,
		criticLimiter:    rate.NewLimiter(5, 2),
		assistantLimiter: rate.NewLimiter(5, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
