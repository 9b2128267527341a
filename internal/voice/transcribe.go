package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoSpeech is returned when transcription yields no text.
var ErrNoSpeech = errors.New("no speech detected")

// ErrNoModel is returned when the arguments need a model and none is set.
var ErrNoModel = fmt.Errorf("no whisper model found; set voice.model or %s", WhisperModelEnv)

// Transcriber runs a speech-to-text command on an audio file.
//
// Without Args the command is invoked as `<binary> <audio path>`. Args may
// reference "{audio}" and "{model}"; when no argument mentions the audio
// it is appended. If the command leaves a JSON file next to the audio
// (same stem, .json extension) the text is read from there; otherwise
// stdout is used.
type Transcriber struct {
	Binary  string
	Args    []string
	Model   string
	Timeout time.Duration
}

// CommandArgs returns the arguments used to transcribe audio.
func (t *Transcriber) CommandArgs(audio string) ([]string, error) {
	if len(t.Args) == 0 {
		return []string{audio}, nil
	}

	r := strings.NewReplacer("{audio}", audio, "{model}", t.Model)
	out := make([]string, 0, len(t.Args)+1)
	hasAudio := false
	for _, a := range t.Args {
		if strings.Contains(a, "{model}") && t.Model == "" {
			return nil, ErrNoModel
		}
		if strings.Contains(a, "{audio}") {
			hasAudio = true
		}
		out = append(out, r.Replace(a))
	}
	if !hasAudio {
		out = append(out, audio)
	}
	return out, nil
}

// Transcribe returns the text spoken in the audio file at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	args, err := t.CommandArgs(path)
	if err != nil {
		return "", err
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("transcription timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("transcription failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if jsonPath := findTranscript(path); jsonPath != "" {
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return "", fmt.Errorf("failed to read transcript: %w", err)
		}
		_ = os.Remove(jsonPath)

		text, err := ParseTranscript(data)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", ErrNoSpeech
		}
		return text, nil
	}

	text := CollapseSpace(stdout.String())
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// findTranscript locates the JSON file a transcriber wrote for audioPath.
func findTranscript(audioPath string) string {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	dir := filepath.Dir(audioPath)

	exact := filepath.Join(dir, stem+".json")
	if _, err := os.Stat(exact); err == nil {
		return exact
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	for _, m := range matches {
		if strings.Contains(filepath.Base(m), stem) {
			return m
		}
	}
	return ""
}

type segment struct {
	Text string `json:"text"`
}

// ParseTranscript extracts text from the JSON shapes common transcribers
// write: {"transcription":[{"text":..}]}, {"text":..} or [{"text":..}].
func ParseTranscript(data []byte) (string, error) {
	var parts []string

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var segs []segment
		if err := json.Unmarshal(trimmed, &segs); err != nil {
			return "", fmt.Errorf("failed to parse transcript: %w", err)
		}
		for _, s := range segs {
			parts = append(parts, s.Text)
		}
		return CollapseSpace(strings.Join(parts, " ")), nil
	}

	var doc struct {
		Transcription []segment `json:"transcription"`
		Text          *string   `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %w", err)
	}
	switch {
	case doc.Transcription != nil:
		for _, s := range doc.Transcription {
			parts = append(parts, s.Text)
		}
	case doc.Text != nil:
		parts = append(parts, *doc.Text)
	}
	return CollapseSpace(strings.Join(parts, " ")), nil
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
