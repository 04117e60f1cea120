// Package config holds the bot configuration: a JSON5 file overlaid with
// environment variables. Secrets (the bot token) are env-only and never
// written to or read from the config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/titanous/json5"
)

// Config is the root configuration for the relay bot.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Relay     RelayConfig     `json:"relay"`
	KeepAlive KeepAliveConfig `json:"keepalive"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// TelegramConfig configures the Telegram channel.
// Token is NEVER read from the config file, only from env
// TIKRELAY_BOT_TOKEN (or TELEGRAM_BOT_TOKEN for compatibility).
type TelegramConfig struct {
	Token   string `json:"-"`
	AdminID int64  `json:"admin_id,omitempty"` // numeric user ID allowed to run admin commands (0 = none)
}

// RelayConfig tunes the download/relay pipeline.
type RelayConfig struct {
	Concurrency       int      `json:"concurrency,omitempty"`         // max simultaneous pipeline executions
	RateWindowSeconds int      `json:"rate_window_seconds,omitempty"` // per-user admission window
	RateLimit         int      `json:"rate_limit,omitempty"`          // admissions per user per window
	MaxUploadMiB      int      `json:"max_upload_mib,omitempty"`      // Telegram bot upload ceiling
	DownloadDir       string   `json:"download_dir,omitempty"`        // transient staging dir (default: os.TempDir)
	Providers         []string `json:"providers,omitempty"`           // extraction order, first success wins
}

// KeepAliveConfig configures the liveness HTTP listener.
type KeepAliveConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// TelemetryConfig configures optional OTLP trace export.
// Tracing is disabled unless Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty"`     // OTLP/HTTP endpoint (e.g. "localhost:4318")
	Insecure    bool   `json:"insecure,omitempty"`     // plain HTTP instead of TLS
	ServiceName string `json:"service_name,omitempty"` // resource service.name (default "tikrelay")
}

// RateWindow returns the admission window as a duration.
func (c *RelayConfig) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Concurrency:       3,
			RateWindowSeconds: 10,
			RateLimit:         3,
			MaxUploadMiB:      50,
			Providers:         []string{"tikwm", "snapvid", "tikdown", "mobile"},
		},
		KeepAlive: KeepAliveConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tikrelay",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; env vars alone are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("TIKRELAY_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	} else if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TIKRELAY_ADMIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.AdminID = id
		}
	}
	if v := os.Getenv("TIKRELAY_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Relay.Concurrency = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.KeepAlive.Port = p
		}
	}
	if v := os.Getenv("TIKRELAY_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("TIKRELAY_DOWNLOAD_DIR"); v != "" {
		c.Relay.DownloadDir = v
	}
}

// Validate checks that the config is complete enough to start.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("bot token is not set (TIKRELAY_BOT_TOKEN)")
	}
	if c.Relay.Concurrency <= 0 {
		return fmt.Errorf("relay concurrency must be positive, got %d", c.Relay.Concurrency)
	}
	if c.Relay.MaxUploadMiB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.Relay.MaxUploadMiB)
	}
	return nil
}
