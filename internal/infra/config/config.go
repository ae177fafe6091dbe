// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Catalog CatalogConfig `yaml:"catalog"`
	Stream  StreamConfig  `yaml:"stream"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig represents the control API server configuration.
type ServerConfig struct {
	Addr            string `yaml:"addr" default:":8080"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec" default:"10" validate:"gte=1"`
}

// AuthConfig represents the authorization service configuration.
// Username and password establish the session credential at startup;
// both can be supplied via environment instead of the file.
type AuthConfig struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// CatalogConfig represents the resource/catalog service configuration.
type CatalogConfig struct {
	BaseURL         string  `yaml:"base_url" validate:"required,url"`
	RequestTimeout  int     `yaml:"request_timeout_sec" default:"15" validate:"gte=1,lte=120"`
	MaxRetries      int     `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" default:"10" validate:"gt=0"`
	EagerCoverFetch bool    `yaml:"eager_cover_fetch"`
}

// StreamConfig represents stream resolution configuration.
type StreamConfig struct {
	Delivery        string         `yaml:"delivery" default:"flac" validate:"oneof=flac hls"`
	Settings        map[string]any `yaml:"settings,omitempty"`
	TokenTimeoutSec int            `yaml:"token_timeout_sec" default:"10" validate:"gte=1,lte=60"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Output string `yaml:"output" default:"stdout"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("OTOBOX_USERNAME"); v != "" {
		c.Auth.Username = v
	}
	if v := os.Getenv("OTOBOX_PASSWORD"); v != "" {
		c.Auth.Password = v
	}
	if v := os.Getenv("OTOBOX_AUTH_URL"); v != "" {
		c.Auth.BaseURL = v
	}
	if v := os.Getenv("OTOBOX_CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// TokenTimeout returns the stream token request timeout.
func (c *Config) TokenTimeout() time.Duration {
	return time.Duration(c.Stream.TokenTimeoutSec) * time.Second
}

// CatalogTimeout returns the catalog request timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.RequestTimeout) * time.Second
}
