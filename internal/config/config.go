// Package config loads autus settings from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds process-wide settings. CLI flags override these when set.
type Config struct {
	DB       string     `env:"AUTUS_DB" envDefault:"autus.db"`
	LogLevel slog.Level `env:"AUTUS_LOG_LEVEL" envDefault:"info"`
	Format   string     `env:"AUTUS_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values the env tags cannot express.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("config: AUTUS_DB must not be empty")
	}
	if !ValidFormat(c.Format) {
		return fmt.Errorf("config: invalid format %q (must be %q or %q)", c.Format, FormatText, FormatJSON)
	}
	return nil
}

// ValidFormat reports whether f is a known output format.
func ValidFormat(f string) bool {
	return f == FormatText || f == FormatJSON
}
