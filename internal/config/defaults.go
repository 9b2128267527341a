package config

import "time"

// Default configuration values.
const (
	DefaultDatabase    = ".leapsheet/sheets.db"
	DefaultExportDir   = "exports"
	DefaultHistoryFile = ".leapsheet/history"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "warn"
	DefaultServerAddr  = "127.0.0.1:8787"

	DefaultAgentTimeout = 60 * time.Second

	DefaultRecorder     = "ffmpeg"
	DefaultTranscriber  = "transcribe"
	DefaultMaxDuration  = 60 * time.Second
	DefaultVoiceTimeout = 120 * time.Second
)

// ApplyDefaults fills unset agent fields.
func (a *AgentConfig) ApplyDefaults() {
	if a == nil {
		return
	}
	if a.Timeout == 0 {
		a.Timeout = DefaultAgentTimeout
	}
}

// ApplyDefaults fills unset voice fields. The input format and device
// follow the host platform's ffmpeg capture device.
func (v *VoiceConfig) ApplyDefaults(goos string) {
	if v == nil {
		return
	}
	if v.Recorder == "" {
		v.Recorder = DefaultRecorder
	}
	if v.Transcriber == "" {
		v.Transcriber = DefaultTranscriber
	}
	if v.InputFormat == "" || v.Device == "" {
		format, device := defaultCaptureDevice(goos)
		if v.InputFormat == "" {
			v.InputFormat = format
		}
		if v.Device == "" {
			v.Device = device
		}
	}
	if v.MaxDuration == 0 {
		v.MaxDuration = DefaultMaxDuration
	}
	if v.Timeout == 0 {
		v.Timeout = DefaultVoiceTimeout
	}
}

func defaultCaptureDevice(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// ApplyDefaults fills unset server fields.
func (s *ServerConfig) ApplyDefaults() {
	if s == nil {
		return
	}
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
}
