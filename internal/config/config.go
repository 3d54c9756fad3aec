// ABOUTME: Configuration loading and parsing for context-gateway
// ABOUTME: Supports YAML files with environment variable expansion and defaults

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied where the file leaves a field unset.
const (
	DefaultHTTPAddr      = "localhost:8765"
	DefaultMaxTokens     = 4000
	DefaultCacheCapacity = 128
	DefaultUpstreamWait  = 30 * time.Second
	DefaultTokenLifetime = 24 * time.Hour
)

// Config represents the complete context-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Context  ContextConfig  `yaml:"context"`
	Adapters AdaptersConfig `yaml:"adapters"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds connection store configuration. An empty path
// selects the in-memory store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenLifetime time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenLifetimeRaw string `yaml:"token_lifetime"`
}

// ContextConfig holds context aggregation defaults
type ContextConfig struct {
	MaxTokens       int  `yaml:"max_tokens"`
	IncludeMetadata bool `yaml:"include_metadata"`
}

// AdaptersConfig holds adapter tuning configuration
type AdaptersConfig struct {
	CacheCapacity int           `yaml:"cache_capacity"`
	UpstreamWait  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	UpstreamWaitRaw string `yaml:"upstream_wait"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
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

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Context.MaxTokens == 0 {
		c.Context.MaxTokens = DefaultMaxTokens
	}
	if c.Adapters.CacheCapacity == 0 {
		c.Adapters.CacheCapacity = DefaultCacheCapacity
	}
	if c.Adapters.UpstreamWait == 0 {
		c.Adapters.UpstreamWait = DefaultUpstreamWait
	}
	if c.Auth.TokenLifetime == 0 {
		c.Auth.TokenLifetime = DefaultTokenLifetime
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Context.MaxTokens < 0 {
		return fmt.Errorf("context.max_tokens must not be negative")
	}
	if c.Adapters.CacheCapacity < 0 {
		return fmt.Errorf("adapters.cache_capacity must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenLifetimeRaw != "" {
		cfg.Auth.TokenLifetime, err = time.ParseDuration(cfg.Auth.TokenLifetimeRaw)
		if err != nil {
			return fmt.Errorf("parsing token_lifetime %q: %w", cfg.Auth.TokenLifetimeRaw, err)
		}
	}

	if cfg.Adapters.UpstreamWaitRaw != "" {
		cfg.Adapters.UpstreamWait, err = time.ParseDuration(cfg.Adapters.UpstreamWaitRaw)
		if err != nil {
			return fmt.Errorf("parsing upstream_wait %q: %w", cfg.Adapters.UpstreamWaitRaw, err)
		}
	}

	return nil
}
