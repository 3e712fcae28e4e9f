package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Browser engines.
const (
	EngineChrome  = "chrome"
	EngineSandbox = "sandbox"
)

// Config holds all application configuration.
type Config struct {
	// Debug is the raw debug switch. Only the literal "true" enables it.
	Debug   string `envconfig:"MAUTRIX_GVOICE_ELECTRON_DEBUG"`
	Browser BrowserConfig
	Sandbox SandboxConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// BrowserConfig holds browser engine configuration.
type BrowserConfig struct {
	Engine            string        `envconfig:"BROWSER_ENGINE" default:"chrome"`
	Bin               string        `envconfig:"BROWSER_BIN"`
	ControlURL        string        `envconfig:"BROWSER_CONTROL_URL"`
	NavigationTimeout time.Duration `envconfig:"BROWSER_NAVIGATION_TIMEOUT" default:"60s"`
}

// SandboxConfig holds in-process engine configuration.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"10s"`
	FetchRetries int           `envconfig:"SANDBOX_FETCH_RETRIES" default:"2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the optional metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR"`
}

// DebugMode reports whether the browser window should be shown with its
// developer tools open.
func (c *Config) DebugMode() bool {
	return c.Debug == "true"
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case EngineChrome, EngineSandbox:
	default:
		return fmt.Errorf("unknown browser engine %q", c.Browser.Engine)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive, got %s", c.Browser.NavigationTimeout)
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox timeout must be positive, got %s", c.Sandbox.Timeout)
	}
	if c.Sandbox.FetchRetries < 0 {
		return fmt.Errorf("sandbox fetch retries must not be negative, got %d", c.Sandbox.FetchRetries)
	}
	return nil
}

// LoadDotEnv adds variables from the given dotenv files to the environment.
// Variables already set win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Engine:            EngineChrome,
			NavigationTimeout: 60 * time.Second,
		},
		Sandbox: SandboxConfig{
			Timeout:      10 * time.Second,
			FetchRetries: 2,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
