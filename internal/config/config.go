// Package config loads the tracker's TOML configuration and its
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection/view"
)

// Environment variables that override file values.
const (
	EnvBaseURL    = "TCG_API_BASE_URL"
	EnvPageSize   = "TCG_PAGE_SIZE"
	EnvDebug      = "TCG_DEBUG"
	EnvPassphrase = "TCG_SESSION_PASSPHRASE"
)

// MaxPageSize is the largest page size the view accepts.
const MaxPageSize = 500

// Config represents the application configuration.
type Config struct {
	// Backend connection settings
	API APIConfig `toml:"api"`

	// Persisted session settings
	Session SessionConfig `toml:"session"`

	// Collection view defaults
	View ViewConfig `toml:"view"`

	// Local reference backend settings (cmd/apiserver)
	Server ServerConfig `toml:"server"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`    // Including the /api prefix
	Timeout    string `toml:"timeout"`     // Per request (e.g., "15s")
	RateLimit  string `toml:"rate_limit"`  // Minimum spacing between requests, "0s" disables
	MaxRetries int    `toml:"max_retries"` // Extra attempts on 429 and GET network errors
	UserAgent  string `toml:"user_agent"`
}

// SessionConfig contains session cookie persistence settings.
type SessionConfig struct {
	Persist       bool   `toml:"persist"`        // Keep the session cookie between runs
	StorePath     string `toml:"store_path"`     // SQLite file, empty = next to the config file
	CookieTTL     string `toml:"cookie_ttl"`     // How long a stored cookie is trusted
	PassphraseEnv string `toml:"passphrase_env"` // Variable holding the encryption passphrase
}

// ViewConfig contains collection view defaults.
type ViewConfig struct {
	PageSize      int    `toml:"page_size"`
	SortField     string `toml:"sort_field"`     // name, condition, dateAdded, quantity
	SortDirection string `toml:"sort_direction"` // asc or desc
}

// ServerConfig contains settings for the local reference backend.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	SeedDemoUser   bool     `toml:"seed_demo_user"`
	SessionTTL     string   `toml:"session_ttl"` // Server-side session lifetime, "0s" never expires
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			Timeout:    "15s",
			RateLimit:  "50ms",
			MaxRetries: 2,
			UserAgent:  "",
		},
		Session: SessionConfig{
			Persist:       true,
			StorePath:     "",
			CookieTTL:     "24h",
			PassphraseEnv: EnvPassphrase,
		},
		View: ViewConfig{
			PageSize:      view.DefaultPageSize,
			SortField:     string(view.DefaultSort.Field),
			SortDirection: string(view.DefaultSort.Direction),
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173"},
			SeedDemoUser:   true,
			SessionTTL:     "12h",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".tcg-tracker")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns ~/.tcg-tracker/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadEnv reads .env and then .env.local from the working directory when
// they exist. Variables already set in the process environment win.
func LoadEnv() error {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the file at path on top of the defaults. A missing file yields
// the defaults. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPageSize, v, err)
		}
		c.View.PageSize = n
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		c.App.DebugMode = b
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api base URL %q", c.API.BaseURL)
	}

	for name, v := range map[string]string{
		"api timeout":        c.API.Timeout,
		"api rate limit":     c.API.RateLimit,
		"session cookie TTL": c.Session.CookieTTL,
		"server session TTL": c.Server.SessionTTL,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", name, v)
		}
	}

	if c.API.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.API.MaxRetries)
	}

	if c.View.PageSize < 1 || c.View.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d: %d", MaxPageSize, c.View.PageSize)
	}
	if _, err := view.ParseSort(c.View.SortField, c.View.SortDirection); err != nil {
		return err
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// GetTimeout returns the request timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// GetRateLimit returns the request spacing as a duration.
func (c *Config) GetRateLimit() time.Duration {
	d, _ := time.ParseDuration(c.API.RateLimit)
	return d
}

// GetCookieTTL returns the stored cookie lifetime as a duration.
func (c *Config) GetCookieTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.CookieTTL)
	return d
}

// GetSessionTTL returns the server session lifetime. Call Validate first.
func (c *Config) GetSessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Server.SessionTTL)
	return d
}

// GetSort returns the default sort. Call Validate first.
func (c *Config) GetSort() view.SortCriteria {
	s, err := view.ParseSort(c.View.SortField, c.View.SortDirection)
	if err != nil {
		return view.DefaultSort
	}
	return s
}

// StorePath returns the session database path, defaulting to session.db
// next to configPath.
func (c *Config) StorePath(configPath string) string {
	if p := strings.TrimSpace(c.Session.StorePath); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), "session.db")
}

// Passphrase returns the cookie encryption passphrase, or "" when unset.
func (c *Config) Passphrase() string {
	if c.Session.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(c.Session.PassphraseEnv)
}
