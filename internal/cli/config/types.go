// Package config provides configuration management for the leapsheet CLI.
//
// Settings are layered with koanf: built-in defaults, then leapsheet.yaml,
// then LEAPSHEET_ environment variables, then explicitly set flags. The
// agent, voice and server sections reuse the shared types from
// internal/config so those packages never import the CLI.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapsheet/internal/config"
)

// AgentConfig is an alias for the shared agent configuration.
type AgentConfig = sharedcfg.AgentConfig

// VoiceConfig is an alias for the shared voice configuration.
type VoiceConfig = sharedcfg.VoiceConfig

// ServerConfig is an alias for the shared server configuration.
type ServerConfig = sharedcfg.ServerConfig

// Config holds all CLI configuration options.
type Config struct {
	DatabasePath string `koanf:"database"`
	ExportDir    string `koanf:"export_dir"`
	HistoryFile  string `koanf:"history_file"`
	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`
	LogLevel     string `koanf:"log_level"`

	Agent  AgentConfig  `koanf:"agent"`
	Voice  VoiceConfig  `koanf:"voice"`
	Server ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultDatabase    = sharedcfg.DefaultDatabase
	DefaultExportDir   = sharedcfg.DefaultExportDir
	DefaultHistoryFile = sharedcfg.DefaultHistoryFile
	DefaultOutput      = sharedcfg.DefaultOutput
	DefaultLogLevel    = sharedcfg.DefaultLogLevel

	// MemoryDatabase keeps all tables in memory for the life of the process.
	MemoryDatabase = ":memory:"
)

// Default returns a config populated with defaults and no project root.
func Default() *Config {
	cfg := &Config{
		DatabasePath: DefaultDatabase,
		ExportDir:    DefaultExportDir,
		HistoryFile:  DefaultHistoryFile,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		Server:       ServerConfig{Watch: true},
	}
	cfg.ApplyDefaults()
	return cfg
}
