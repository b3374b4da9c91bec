// ABOUTME: Configuration loading and parsing for the Parlor client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Preview  PreviewConfig  `yaml:"preview"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds backend endpoint configuration
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds the local history cache database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	// TokenPath overrides the default token file location.
	TokenPath string `yaml:"token_path"`
}

// CacheConfig holds in-memory cache timing configuration
type CacheConfig struct {
	AgentTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	AgentTTLRaw string `yaml:"agent_ttl"`
}

// PreviewConfig holds preview workflow configuration
type PreviewConfig struct {
	// ConfirmedCapacity bounds the remembered approved-preview ids.
	// Zero means the built-in default.
	ConfirmedCapacity int `yaml:"confirmed_capacity"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "https://api.parlor.app"
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// defaultDatabasePath returns XDG_DATA_HOME/parlor/history.db, falling back
// to ~/.local/share/parlor/history.db.
func defaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "history.db"
		}
		dataDir = homeDir + "/.local/share"
	}
	return dataDir + "/parlor/history.db"
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Preview.ConfirmedCapacity < 0 {
		return fmt.Errorf("preview.confirmed_capacity must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cache.AgentTTLRaw != "" {
		cfg.Cache.AgentTTL, err = time.ParseDuration(cfg.Cache.AgentTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing agent_ttl %q: %w", cfg.Cache.AgentTTLRaw, err)
		}
	}

	return nil
}
