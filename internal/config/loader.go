package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/scribe/internal/errkind"
)

// Load reads a YAML config file, expands environment references, merges the
// result over the defaults, and validates it.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errkind.New(errkind.Config, "config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Config, fmt.Errorf("read config: %w", err))
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes already-expanded YAML over the defaults. Unknown keys are
// rejected so typos fail loudly instead of silently falling back.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, errkind.Wrap(errkind.Config, fmt.Errorf("parse config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
