// Package config loads and validates the application configuration from a
// file, environment variables, and spec'd CI variables.
package config

import (
	"fmt"
	"time"
)

// Config represents the full application configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	GitHub  GitHubConfig  `yaml:"github"`
	Review  ReviewConfig  `yaml:"review"`
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the language model backend.
type ModelConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	ID        string `yaml:"id"`
	MaxTokens int    `yaml:"maxTokens"`
}

// GitHubConfig configures the hosting provider client.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"baseURL"`
}

// ReviewConfig configures the pipeline itself.
type ReviewConfig struct {
	// ChunkTokenBudget is the per-chunk token ceiling.
	ChunkTokenBudget int `yaml:"chunkTokenBudget"`

	// Concurrency bounds the number of chunks reviewed in flight.
	Concurrency int `yaml:"concurrency"`

	// Timeout is the wall-clock budget for the whole run.
	Timeout string `yaml:"timeout"`
}

// HTTPConfig holds shared HTTP retry settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// StoreConfig configures the local persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warning, error
	Format string `yaml:"format"` // json, human, auto
}

// Validate reports the first fatal configuration problem. A missing API key
// is fatal before any network I/O happens.
func (c Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("config: API_KEY is required")
	}
	if c.Model.ID == "" {
		return fmt.Errorf("config: model id is required")
	}
	if c.Review.ChunkTokenBudget <= 0 {
		return fmt.Errorf("config: chunk token budget must be positive, got %d", c.Review.ChunkTokenBudget)
	}
	if c.Review.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be positive, got %d", c.Review.Concurrency)
	}
	if _, err := time.ParseDuration(c.Review.Timeout); err != nil {
		return fmt.Errorf("config: invalid review timeout %q: %w", c.Review.Timeout, err)
	}
	if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("config: invalid http timeout %q: %w", c.HTTP.Timeout, err)
	}
	if _, err := time.ParseDuration(c.HTTP.InitialBackoff); err != nil {
		return fmt.Errorf("config: invalid initial backoff %q: %w", c.HTTP.InitialBackoff, err)
	}
	if _, err := time.ParseDuration(c.HTTP.MaxBackoff); err != nil {
		return fmt.Errorf("config: invalid max backoff %q: %w", c.HTTP.MaxBackoff, err)
	}
	return nil
}

// ReviewTimeout returns the parsed run timeout. Validate must have passed.
func (c Config) ReviewTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Review.Timeout)
	return d
}

// HTTPTimeout returns the parsed per-request timeout.
func (c Config) HTTPTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTP.Timeout)
	return d
}
