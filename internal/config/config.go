// Package config loads and validates the router's configuration from YAML.
// Environment references in the file ($VAR or ${VAR}) are expanded before
// parsing, so secrets can stay out of the file itself.
package config

import (
	"time"

	"github.com/haasonsaas/scribe/internal/errkind"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Blob       BlobConfig       `yaml:"blob"`
	Secret     SecretConfig     `yaml:"secret"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Memory     MemoryConfig     `yaml:"memory"`
	Repository RepositoryConfig `yaml:"repository"`
	Model      ModelConfig      `yaml:"model"`
	Event      EventConfig      `yaml:"event"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	// Addr is the HTTP listen address for the event, health, and metrics
	// endpoints.
	Addr string `yaml:"addr"`
}

type BlobConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Endpoint overrides the storage endpoint, for local stacks.
	Endpoint      string `yaml:"endpoint"`
	AppendRetries int    `yaml:"append_retries"`
}

type SecretConfig struct {
	// TokenName is the logical name of the code-hosting API token.
	TokenName string `yaml:"token_name"`
	// ModelKeyName is the logical name of the model API key.
	ModelKeyName string        `yaml:"model_key_name"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

type ClassifierConfig struct {
	// Mode selects the classifier variant: "path_hint" or "content".
	Mode string `yaml:"mode"`
	// MinConfidence is the floor below which content mode falls back.
	MinConfidence float64 `yaml:"min_confidence"`
}

type MemoryConfig struct {
	// Enrichment is "on" or "off"; off skips the model call and archives
	// minimal records.
	Enrichment string `yaml:"enrichment"`
}

type RepositoryConfig struct {
	Enabled *bool `yaml:"enabled"`
	// DefaultVisibility is "public" or "private".
	DefaultVisibility string `yaml:"default_visibility"`
}

type ModelConfig struct {
	// Name is the model identifier sent to the API.
	Name      string `yaml:"name"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type EventConfig struct {
	DeadlineMS int `yaml:"deadline_ms"`
}

type ProcessorConfig struct {
	DeadlineMS int `yaml:"deadline_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every optional field at its documented
// default. Required fields (bucket, secret names) stay empty and are caught by
// Validate.
func Default() *Config {
	enabled := true
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Blob:   BlobConfig{AppendRetries: 8},
		Secret: SecretConfig{CacheTTL: 15 * time.Minute},
		Classifier: ClassifierConfig{
			Mode:          "content",
			MinConfidence: 0.5,
		},
		Memory: MemoryConfig{Enrichment: "on"},
		Repository: RepositoryConfig{
			Enabled:           &enabled,
			DefaultVisibility: "public",
		},
		Model:     ModelConfig{TimeoutMS: 6000},
		Event:     EventConfig{DeadlineMS: 120000},
		Processor: ProcessorConfig{DeadlineMS: 30000},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// RepositoryEnabled resolves the tri-state enabled flag (unset means true).
func (c *Config) RepositoryEnabled() bool {
	return c.Repository.Enabled == nil || *c.Repository.Enabled
}

// ModelTimeout converts the configured per-call deadline.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutMS) * time.Millisecond
}

// EventDeadline converts the configured per-event deadline.
func (c *Config) EventDeadline() time.Duration {
	return time.Duration(c.Event.DeadlineMS) * time.Millisecond
}

// ProcessorDeadline converts the configured per-processor deadline.
func (c *Config) ProcessorDeadline() time.Duration {
	return time.Duration(c.Processor.DeadlineMS) * time.Millisecond
}

// NeedsModel reports whether any configured component calls the model.
func (c *Config) NeedsModel() bool {
	return c.Classifier.Mode == "content" || c.Memory.Enrichment == "on" || c.RepositoryEnabled()
}

// Validate checks closed-set fields and required keys. All violations are
// tagged errkind.Config.
func (c *Config) Validate() error {
	switch c.Classifier.Mode {
	case "path_hint", "content":
	default:
		return errkind.Newf(errkind.Config, "classifier.mode %q: must be path_hint or content", c.Classifier.Mode)
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		return errkind.Newf(errkind.Config, "classifier.min_confidence %v: must be in [0,1]", c.Classifier.MinConfidence)
	}
	switch c.Memory.Enrichment {
	case "on", "off":
	default:
		return errkind.Newf(errkind.Config, "memory.enrichment %q: must be on or off", c.Memory.Enrichment)
	}
	switch c.Repository.DefaultVisibility {
	case "public", "private":
	default:
		return errkind.Newf(errkind.Config, "repository.default_visibility %q: must be public or private", c.Repository.DefaultVisibility)
	}
	if c.Blob.Bucket == "" {
		return errkind.New(errkind.Config, "blob.bucket is required")
	}
	if c.Blob.AppendRetries < 1 {
		return errkind.Newf(errkind.Config, "blob.append_retries %d: must be at least 1", c.Blob.AppendRetries)
	}
	if c.RepositoryEnabled() && c.Secret.TokenName == "" {
		return errkind.New(errkind.Config, "secret.token_name is required while the repository processor is enabled")
	}
	if c.NeedsModel() && c.Secret.ModelKeyName == "" {
		return errkind.New(errkind.Config, "secret.model_key_name is required while any component uses the model")
	}
	if c.Model.TimeoutMS <= 0 || c.Event.DeadlineMS <= 0 || c.Processor.DeadlineMS <= 0 {
		return errkind.New(errkind.Config, "deadlines must be positive")
	}
	if c.Processor.DeadlineMS > c.Event.DeadlineMS {
		return errkind.Newf(errkind.Config, "processor.deadline_ms %d exceeds event.deadline_ms %d", c.Processor.DeadlineMS, c.Event.DeadlineMS)
	}
	return nil
}
