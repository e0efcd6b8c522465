package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Subscription tiers. The free tier carries a daily message quota; premium
// is unlimited but still subject to the server-declared rate limit.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Duration wraps time.Duration so TOML values like "2s" decode.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds application configuration
type Config struct {
	APIBaseURL string `toml:"api_base_url"`
	APIKey     string `toml:"-"` // from PLANWISE_API_KEY, never from file
	Model      string `toml:"model"`
	Tier       string `toml:"tier"`
	SessionID  string `toml:"-"`
	Debug      bool   `toml:"debug"`

	DatabasePath string `toml:"database_path"`

	// Retry policy for the chat completion request.
	MaxAttempts int      `toml:"max_attempts"`
	RetryDelay  Duration `toml:"retry_delay"`

	// Daily message allowance for the free tier.
	FreeDailyLimit int `toml:"free_daily_limit"`

	// Remote planner managers: function name -> endpoint. Endpoints starting
	// with ws:// or wss:// use WebSocket, http:// or https:// use HTTP, and
	// anything else is treated as a path to a helper process spoken to over
	// stdio.
	RemoteManagers map[string]string `toml:"remote_managers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:     "https://api.planwise.app/v1",
		Model:          "planwise-chat-1",
		Tier:           TierFree,
		DatabasePath:   "planwise.db",
		MaxAttempts:    3,
		RetryDelay:     Duration(2 * time.Second),
		FreeDailyLimit: 10,
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Tier != TierFree && cfg.Tier != TierPremium {
		return cfg, fmt.Errorf("unknown tier: %s", cfg.Tier)
	}
	if cfg.MaxAttempts < 1 {
		return cfg, fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}
