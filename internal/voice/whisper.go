package voice

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Environment variables naming a whisper.cpp build.
const (
	WhisperPathEnv  = "WHISPER_CPP_PATH"
	WhisperModelEnv = "WHISPER_CPP_MODEL"
)

// WhisperArgs runs whisper-cli without timestamps or progress output, so
// stdout is the transcript.
var WhisperArgs = []string{"-m", "{model}", "-f", "{audio}", "-nt", "-np"}

// whisperEnv is what discovery reads from the host.
type whisperEnv struct {
	getenv   func(string) string
	home     string
	lookPath func(string) (string, error)
}

func hostWhisperEnv() whisperEnv {
	home, _ := os.UserHomeDir()
	return whisperEnv{getenv: os.Getenv, home: home, lookPath: exec.LookPath}
}

// findWhisperCLI returns the whisper-cli binary, or "" when none is found.
// WHISPER_CPP_PATH wins, then PATH, then the usual build locations.
func (e whisperEnv) findWhisperCLI() string {
	if p := e.getenv(WhisperPathEnv); p != "" && isFile(p) {
		return p
	}
	if p, err := e.lookPath("whisper-cli"); err == nil {
		return p
	}

	var candidates []string
	if e.home != "" {
		candidates = append(candidates,
			filepath.Join(e.home, "whisper.cpp", "build", "bin", "whisper-cli"),
			filepath.Join(e.home, "whisper.cpp", "main"),
		)
	}
	candidates = append(candidates, "/usr/local/bin/whisper-cli", "/opt/homebrew/bin/whisper-cli")
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}
	return ""
}

// findWhisperModel returns a ggml model file, or "" when none is found.
// WHISPER_CPP_MODEL wins, then the English base models, then any
// ~/whisper.cpp/models/ggml-*.bin.
func (e whisperEnv) findWhisperModel() string {
	if p := e.getenv(WhisperModelEnv); p != "" && isFile(p) {
		return p
	}
	if e.home == "" {
		return ""
	}

	models := filepath.Join(e.home, "whisper.cpp", "models")
	for _, name := range []string{"ggml-base.en.bin", "ggml-base.bin", "ggml-small.en.bin", "ggml-tiny.en.bin"} {
		if p := filepath.Join(models, name); isFile(p) {
			return p
		}
	}
	matches, _ := filepath.Glob(filepath.Join(models, "ggml-*.bin"))
	for _, m := range matches {
		if isFile(m) {
			return m
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
