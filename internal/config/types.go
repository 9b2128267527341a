// Package config provides shared configuration types for leapsheet.
// This package is decoupled from CLI concerns so the server, agent and voice
// packages can take their settings without importing the CLI.
package config

import (
	"fmt"
	"time"
)

// AgentConfig configures the external natural-language translator.
type AgentConfig struct {
	// Command is the executable that turns a request into tool calls.
	// Empty disables natural-language input.
	Command string        `koanf:"command"`
	Args    []string      `koanf:"args"`
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether an agent command is configured.
func (a *AgentConfig) Enabled() bool {
	return a != nil && a.Command != ""
}

// VoiceConfig configures speech capture and transcription.
//
// TranscriberArgs replaces the default `<audio>` argument list; "{audio}"
// and "{model}" in it are substituted. Model is a whisper.cpp ggml model.
type VoiceConfig struct {
	Recorder        string        `koanf:"recorder"`     // ffmpeg binary
	InputFormat     string        `koanf:"input_format"` // ffmpeg -f value
	Device          string        `koanf:"device"`       // ffmpeg -i value
	Transcriber     string        `koanf:"transcriber"`
	TranscriberArgs []string      `koanf:"transcriber_args"`
	Model           string        `koanf:"model"`
	MaxDuration     time.Duration `koanf:"max_duration"`
	Timeout         time.Duration `koanf:"timeout"`
}

// ServerConfig configures the HTTP tool endpoint.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// Watch reports changes other processes make to the database file.
	Watch bool `koanf:"watch"`
}

// Validate checks the agent settings.
func (a *AgentConfig) Validate() error {
	if a == nil {
		return nil
	}
	if a.Timeout < 0 {
		return fmt.Errorf("agent.timeout must not be negative")
	}
	return nil
}

// Validate checks the voice settings.
func (v *VoiceConfig) Validate() error {
	if v == nil {
		return nil
	}
	if v.MaxDuration < 0 {
		return fmt.Errorf("voice.max_duration must not be negative")
	}
	if v.Timeout < 0 {
		return fmt.Errorf("voice.timeout must not be negative")
	}
	return nil
}
