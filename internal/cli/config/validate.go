package config

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// ApplyDefaults fills unset nested sections.
func (c *Config) ApplyDefaults() {
	c.Agent.ApplyDefaults()
	c.Voice.ApplyDefaults(runtime.GOOS)
	c.Server.ApplyDefaults()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database is required")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export_dir is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	return c.Voice.Validate()
}

// ParseLogLevel parses debug, info, warn or error. Empty means warn.
func ParseLogLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q (expected debug, info, warn or error)", s)
	}
	return level, nil
}

// Level returns the effective log level. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}
