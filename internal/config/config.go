// Package config provides configuration loading and management for the
// modem monitor.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is used when a modem omits pollInterval.
const DefaultPollInterval = 60 * time.Second

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Modems lists the modem connections to poll
	Modems []ModemConfig `yaml:"modems"`

	// Cache configures selection cache persistence
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Telemetry configures the metrics/health HTTP listener
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ModemConfig defines a single modem connection
type ModemConfig struct {
	// Name is the identifier for this connection; it keys the selection
	// cache and labels metrics
	Name string `yaml:"name"`

	// URL is the modem base URL, e.g. "http://192.168.100.1"
	URL string `yaml:"url"`

	// Parser pins a specific parser by name or manufacturer/name id.
	// Empty means automatic selection.
	Parser string `yaml:"parser,omitempty"`

	// Username for modems that require login
	Username string `yaml:"username,omitempty"`

	// Password for modems that require login. Prefer PasswordFile.
	Password string `yaml:"password,omitempty"`

	// PasswordFile is the path to a file containing the password.
	// This is the recommended approach for production deployments.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// PollInterval is how often to poll this modem (e.g. "60s", "5m")
	PollInterval string `yaml:"pollInterval,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification. Modem web
	// interfaces ship self-signed certificates, so this is commonly needed
	// for https URLs.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty"`
}

// CacheConfig defines selection cache persistence settings
type CacheConfig struct {
	// Path is where the selection cache JSON file is written. Empty
	// disables persistence; selections then live only in memory.
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig defines the metrics/health listener settings
type TelemetryConfig struct {
	// Address is the listen address for /metrics and /healthz,
	// e.g. ":9120". Empty disables the listener.
	Address string `yaml:"address,omitempty"`
}

// GetPassword returns the modem password using the following priority:
// 1. Read from PasswordFile if specified
// 2. The inline Password field
// 3. The CMM_MODEM_PASSWORD environment variable
//
// An empty result is not an error; most modems serve their status pages
// without authentication.
func (m *ModemConfig) GetPassword() (string, error) {
	if m.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(m.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", m.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		return strings.TrimSpace(string(data)), nil
	}

	if m.Password != "" {
		return m.Password, nil
	}

	return os.Getenv("CMM_MODEM_PASSWORD"), nil
}

// GetPollInterval returns the parsed poll interval, falling back to the
// default when unset. Validation has already rejected unparseable values.
func (m *ModemConfig) GetPollInterval() time.Duration {
	if m.PollInterval == "" {
		return DefaultPollInterval
	}
	d, err := time.ParseDuration(m.PollInterval)
	if err != nil {
		return DefaultPollInterval
	}
	return d
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// CachePath returns the configured cache path, or empty when persistence
// is disabled.
func (c *Config) CachePath() string {
	if c.Cache == nil {
		return ""
	}
	return c.Cache.Path
}

// TelemetryAddress returns the configured listener address, or empty when
// the listener is disabled.
func (c *Config) TelemetryAddress() string {
	if c.Telemetry == nil {
		return ""
	}
	return c.Telemetry.Address
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.Modems) == 0 {
		return fmt.Errorf("at least one modem must be configured")
	}

	modemNames := make(map[string]bool)
	for i, m := range c.Modems {
		if m.Name == "" {
			return fmt.Errorf("modem[%d]: name is required", i)
		}

		if modemNames[m.Name] {
			return fmt.Errorf("modem[%d]: duplicate modem name '%s'", i, m.Name)
		}
		modemNames[m.Name] = true

		if err := validateModemConfig(&m, i); err != nil {
			return err
		}
	}

	return nil
}

// validateModemConfig validates a single modem configuration
func validateModemConfig(m *ModemConfig, index int) error {
	prefix := fmt.Sprintf("modem[%d] (%s)", index, m.Name)

	if m.URL == "" {
		return fmt.Errorf("%s: url is required", prefix)
	}
	parsed, err := url.Parse(m.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("%s: url must be a valid absolute URL, got %q", prefix, m.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", prefix, parsed.Scheme)
	}

	if m.Password != "" && m.PasswordFile != "" {
		return fmt.Errorf("%s: only one of password or passwordFile may be specified", prefix)
	}

	if m.PollInterval != "" {
		d, err := time.ParseDuration(m.PollInterval)
		if err != nil {
			return fmt.Errorf("%s: pollInterval must be a valid duration (e.g., '60s', '5m'): %w", prefix, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: pollInterval must be positive, got %s", prefix, m.PollInterval)
		}
	}

	return nil
}
