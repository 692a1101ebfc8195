package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all host daemon configuration.
type Config struct {
	Server     ServerConfig
	Engine     EngineConfig
	CloseCheck CloseCheckConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// EngineConfig holds render engine configuration.
type EngineConfig struct {
	// RenderTimeout bounds how long the remote side may take to signal init.
	// Zero disables the watchdog unless an instance sets its own timeout.
	RenderTimeout time.Duration `envconfig:"RENDER_TIMEOUT" default:"10s"`
	// ClosePollInterval is how often close watchdogs probe the proxy window.
	ClosePollInterval time.Duration `envconfig:"CLOSE_POLL_INTERVAL" default:"3s"`
	// ManifestDir is scanned for *.component.yaml definitions at startup.
	ManifestDir string `envconfig:"MANIFEST_DIR" default:"./components"`
	// HostDomain is the host page's own origin. Children on this origin get
	// their props inlined in the window name instead of fetched by UID.
	HostDomain string `envconfig:"HOST_DOMAIN"`
	// BridgeDomains lists child origins that must be reached through an
	// intermediary bridge frame.
	BridgeDomains []string `envconfig:"BRIDGE_DOMAINS"`
}

// CloseCheckConfig tunes the user-close confirmation probe. Closed-state
// signals can be transiently wrong right after window creation, so the
// default double-checks after a debounce.
type CloseCheckConfig struct {
	Debounce time.Duration `envconfig:"CLOSE_CHECK_DEBOUNCE" default:"200ms"`
	Phases   int           `envconfig:"CLOSE_CHECK_PHASES" default:"2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds transport message rate limiting.
type RateLimitConfig struct {
	MessagesPerSecond int  `envconfig:"RATE_LIMIT_MPS" default:"200"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"400"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Engine: EngineConfig{
			RenderTimeout:     10 * time.Second,
			ClosePollInterval: 3 * time.Second,
			ManifestDir:       "./components",
		},
		CloseCheck: CloseCheckConfig{
			Debounce: 200 * time.Millisecond,
			Phases:   2,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}
