// Package config loads and hot-reloads nerovaagent's JSON5 configuration
// file, overlaid with environment variables (spec.md §6).
package config

import "sync"

// Config is the root configuration for the nerovaagent daemon.
type Config struct {
	Brain     BrainConfig     `json:"brain"`
	Critic    ProviderConfig  `json:"critic"`
	Assistant ProviderConfig  `json:"assistant"`
	Resolver  ResolverConfig  `json:"resolver,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Tailscale TailscaleConfig `json:"tailscale,omitempty"`

	mu sync.RWMutex
}

// BrainConfig configures the daemon's own HTTP surface and browser session.
type BrainConfig struct {
	URL            string `json:"url,omitempty"`       // NEROVA_BRAIN_URL
	Host           string `json:"host,omitempty"`      // HOST
	Port           int    `json:"port,omitempty"`      // PORT
	LogDir         string `json:"log_dir,omitempty"`   // LOG_DIR
	MaxSteps       int    `json:"max_steps,omitempty"` // NEROVA_MAX_STEPS / AGENT_MAX_STEPS
	Headless       bool   `json:"headless,omitempty"`  // NEROVA_HEADLESS == "1"
	KeepBrowser    bool   `json:"keep_browser,omitempty"`
	BootURL        string `json:"boot_url,omitempty"` // NEROVA_BOOT_URL
}

// ProviderConfig configures one of the Critic/Assistant model roles.
type ProviderConfig struct {
	Model         string `json:"model,omitempty"`
	AssistantID   string `json:"assistant_id,omitempty"` // ASSISTANT_ID2, Assistant role only
	PollTimeoutMs int    `json:"poll_timeout_ms,omitempty"`
}

// ResolverConfig tunes the Click Resolver's geometric filters.
type ResolverConfig struct {
	ClickRadiusPx        float64 `json:"click_radius_px,omitempty"`         // AGENT_CLICK_RADIUS
	ScreenshotTimeoutMs   int     `json:"screenshot_timeout_ms,omitempty"`   // AGENT_SCREENSHOT_TIMEOUT_MS
}

// TelemetryConfig configures the optional OTel exporter (internal/obs),
// compiled in only under -tags otel.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// TailscaleConfig configures the optional tsnet listener, compiled in only
// under -tags tsnet. AuthKey is from env only — never persisted to disk.
type TailscaleConfig struct {
	Hostname  string `json:"hostname,omitempty"`
	StateDir  string `json:"state_dir,omitempty"`
	AuthKey   string `json:"-"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
	EnableTLS bool   `json:"enable_tls,omitempty"`
}

// Snapshot returns a copy of c safe to read without holding c's lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}

// ReplaceFrom atomically swaps c's data fields for src's, preserving c's
// mutex identity so existing RLock holders aren't invalidated mid-read.
// Mirrors the teacher's Config.ReplaceFrom used for hot-reload.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Brain = src.Brain
	c.Critic = src.Critic
	c.Assistant = src.Assistant
	c.Resolver = src.Resolver
	c.Telemetry = src.Telemetry
	c.Tailscale = src.Tailscale
}

// Default returns the baseline configuration applied before the config
// file and environment overrides are layered on (spec.md §6 defaults).
func Default() *Config {
	return &Config{
		Brain: BrainConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			MaxSteps: 10,
		},
		Critic: ProviderConfig{
			Model: "gpt-5",
		},
		Assistant: ProviderConfig{
			Model:         "gpt-5-nano",
			PollTimeoutMs: 30_000,
		},
		Resolver: ResolverConfig{
			ClickRadiusPx:       120,
			ScreenshotTimeoutMs: 20_000,
		},
	}
}
