package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source      AccountConfig   `toml:"source"`
	Destination AccountConfig   `toml:"destination"`
	API         APIConfig       `toml:"api"`
	Transport   TransportConfig `toml:"transport"`
	Clone       CloneConfig     `toml:"clone"`
	Database    DatabaseConfig  `toml:"database"`
}

// AccountConfig identifies one retail account by its domain prefix and personal token.
type AccountConfig struct {
	Domain string `toml:"domain"`
	Token  string `toml:"token"`
}

// APIConfig contains the remote API location.
//
// BaseURL is a format string receiving the account domain.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
}

// TransportConfig tunes pacing, retries and request concurrency.
type TransportConfig struct {
	BaseDelay           time.Duration `toml:"base_delay"`
	ElevatedFactor      float64       `toml:"elevated_factor"`
	LowHeadroom         float64       `toml:"low_headroom"`
	MaxAttempts         int           `toml:"max_attempts"`
	BackoffBase         time.Duration `toml:"backoff_base"`
	MaxRateLimitRetries int           `toml:"max_rate_limit_retries"`
	DefaultRetryAfter   time.Duration `toml:"default_retry_after"`
	Timeout             time.Duration `toml:"timeout"`
	Concurrency         int           `toml:"concurrency"`
}

// CloneConfig contains clone run defaults.
type CloneConfig struct {
	PageSize                    int    `toml:"page_size"`
	IncludeInventory            bool   `toml:"include_inventory"`
	AbortAfterTransportFailures int    `toml:"abort_after_transport_failures"`
	OutputDir                   string `toml:"output_dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AccountURL renders the API root for domain.
func (c *Config) AccountURL(domain string) string {
	if strings.Contains(c.API.BaseURL, "%s") {
		return fmt.Sprintf(c.API.BaseURL, domain)
	}
	return strings.TrimRight(c.API.BaseURL, "/")
}

// Validate checks the transport and clone settings for values the engine cannot run with.
func (c *Config) Validate() error {
	t := c.Transport
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("%w: api.base_url is empty", ErrInvalidConfig)
	case t.MaxAttempts < 1:
		return fmt.Errorf("%w: transport.max_attempts must be at least 1", ErrInvalidConfig)
	case t.MaxRateLimitRetries < 0:
		return fmt.Errorf("%w: transport.max_rate_limit_retries is negative", ErrInvalidConfig)
	case t.Concurrency < 1:
		return fmt.Errorf("%w: transport.concurrency must be at least 1", ErrInvalidConfig)
	case t.LowHeadroom < 0 || t.LowHeadroom >= 1:
		return fmt.Errorf("%w: transport.low_headroom must be in [0, 1)", ErrInvalidConfig)
	case t.ElevatedFactor < 1:
		return fmt.Errorf("%w: transport.elevated_factor must be at least 1", ErrInvalidConfig)
	case t.Timeout <= 0:
		return fmt.Errorf("%w: transport.timeout must be positive", ErrInvalidConfig)
	case c.Clone.PageSize < 1:
		return fmt.Errorf("%w: clone.page_size must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Account returns the account settings for the named side ("source" or "destination").
func (c *Config) Account(side string) (AccountConfig, error) {
	var acct AccountConfig
	switch side {
	case "source", "src":
		acct = c.Source
	case "destination", "dest":
		acct = c.Destination
	default:
		return acct, fmt.Errorf("%w: unknown account %q (must be source or destination)", ErrInvalidArgument, side)
	}
	if acct.Domain == "" || acct.Token == "" {
		return acct, fmt.Errorf("%w: %s domain and token are required", ErrMissingCredentials, side)
	}
	return acct, nil
}
