package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Render returns the effective configuration as YAML with secrets redacted.
func (c *Config) Render() ([]byte, error) {
	out := *c
	if out.Identity.JWTSecret != "" {
		out.Identity.JWTSecret = redacted
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("config: render: %w", err)
	}
	return data, nil
}
