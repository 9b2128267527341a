package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapsheet/internal/config"
)

// Input records one utterance and transcribes it.
type Input struct {
	Recorder    *Recorder
	Transcriber *Transcriber
	TempDir     string

	logger *slog.Logger
}

// New creates an Input from configuration. Without a configured
// transcriber a local whisper.cpp build is used when one can be found.
func New(cfg config.VoiceConfig, logger *slog.Logger) *Input {
	return newInput(cfg, logger, hostWhisperEnv())
}

func newInput(cfg config.VoiceConfig, logger *slog.Logger, env whisperEnv) *Input {
	switch {
	case cfg.Transcriber == "":
		if bin := env.findWhisperCLI(); bin != "" {
			cfg.Transcriber = bin
			if cfg.TranscriberArgs == nil {
				cfg.TranscriberArgs = WhisperArgs
			}
		}
	case cfg.TranscriberArgs == nil && isWhisperCLI(cfg.Transcriber):
		cfg.TranscriberArgs = WhisperArgs
	}
	if cfg.Model == "" && needsModel(cfg.TranscriberArgs) {
		cfg.Model = env.findWhisperModel()
	}
	cfg.ApplyDefaults(runtime.GOOS)

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Input{
		Recorder: &Recorder{
			Binary:      cfg.Recorder,
			InputFormat: cfg.InputFormat,
			Device:      cfg.Device,
			MaxDuration: cfg.MaxDuration,
		},
		Transcriber: &Transcriber{
			Binary:  cfg.Transcriber,
			Args:    cfg.TranscriberArgs,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		},
		TempDir: os.TempDir(),
		logger:  logger,
	}
}

func isWhisperCLI(bin string) bool {
	switch filepath.Base(bin) {
	case "whisper-cli", "whisper-cli.exe":
		return true
	}
	return false
}

func needsModel(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "{model}") {
			return true
		}
	}
	return false
}

// Available reports an error naming every missing external program, and
// the model when the transcriber needs one.
func (in *Input) Available() error {
	var missing []string
	for _, bin := range []string{in.Recorder.Binary, in.Transcriber.Binary} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if _, err := in.Transcriber.CommandArgs(""); errors.Is(err, ErrNoModel) {
		missing = append(missing, "whisper model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("voice input unavailable, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Listen records until stop is closed (or the maximum duration passes) and
// returns the transcribed text. The temporary audio file is always removed.
func (in *Input) Listen(ctx context.Context, stop <-chan struct{}) (string, error) {
	path := filepath.Join(in.TempDir, "leapsheet-"+uuid.NewString()+".wav")
	defer func() { _ = os.Remove(path) }()

	in.logger.Debug("recording", "path", path, "max_duration", in.Recorder.MaxDuration)
	if err := in.Recorder.Record(ctx, path, stop); err != nil {
		return "", err
	}

	in.logger.Debug("transcribing", "path", path)
	return in.Transcriber.Transcribe(ctx, path)
}
