package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads path (JSON5, comments/trailing-commas allowed) if it exists,
// layers it onto Default(), then applies environment overrides
// (spec.md §6). A missing file is not an error — the daemon runs on
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg in place,
// per the table in spec.md §6.
func applyEnv(cfg *Config) {
	if v := os.Getenv("NEROVA_BRAIN_URL"); v != "" {
		cfg.Brain.URL = v
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Brain.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brain.Port = n
		}
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Brain.LogDir = v
	}
	if v := os.Getenv("NEROVA_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brain.MaxSteps = n
		}
	}
	if v := os.Getenv("AGENT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brain.MaxSteps = n
		}
	}
	if os.Getenv("NEROVA_HEADLESS") == "1" {
		cfg.Brain.Headless = true
	}
	if v := os.Getenv("NEROVA_KEEP_BROWSER"); v != "" {
		cfg.Brain.KeepBrowser = v == "1"
	}
	if v := os.Getenv("NEROVA_BOOT_URL"); v != "" {
		cfg.Brain.BootURL = v
	}
	if v := os.Getenv("AGENT_CLICK_RADIUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Resolver.ClickRadiusPx = f
		}
	}
	if v := os.Getenv("AGENT_SCREENSHOT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resolver.ScreenshotTimeoutMs = n
		}
	}
	if v := os.Getenv("CRITIC_MODEL"); v != "" {
		cfg.Critic.Model = v
	}
	if v := os.Getenv("ASSISTANT_MODEL"); v != "" {
		cfg.Assistant.Model = v
	}
	if v := os.Getenv("ASSISTANT_ID2"); v != "" {
		cfg.Assistant.AssistantID = v
	}
	cfg.Tailscale.AuthKey = os.Getenv("NEROVA_TSNET_AUTH_KEY")
}
