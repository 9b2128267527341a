// Package voice captures speech from the microphone and turns it into text
// using two external programs: ffmpeg for recording and a transcription
// command (typically a whisper.cpp wrapper).
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// ErrNoAudio is returned when a recording produced no data.
var ErrNoAudio = errors.New("no audio recorded")

// Recorder records mono 16 kHz wav files with ffmpeg.
type Recorder struct {
	Binary      string
	InputFormat string
	Device      string
	MaxDuration time.Duration
}

// Args returns the ffmpeg arguments for recording into out.
func (r *Recorder) Args(out string) []string {
	secs := int(r.MaxDuration / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return []string{
		"-f", r.InputFormat,
		"-i", r.Device,
		"-t", strconv.Itoa(secs),
		"-ar", "16000",
		"-ac", "1",
		"-y",
		"-loglevel", "error",
		out,
	}
}

// Record captures audio into out until stop is closed, MaxDuration passes
// or ctx is cancelled. Stopping asks ffmpeg to finish the file cleanly.
func (r *Recorder) Record(ctx context.Context, out string, stop <-chan struct{}) error {
	cmd := exec.Command(r.Binary, r.Args(out)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open recorder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.Binary, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err = <-done:
	case <-stop:
		err = finish(cmd, stdin, done)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}

	// ffmpeg exits non-zero when interrupted; a usable file is what counts.
	info, statErr := os.Stat(out)
	if statErr != nil || info.Size() == 0 {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoAudio, err)
		}
		return ErrNoAudio
	}
	return nil
}

// finish sends ffmpeg its interactive quit key and waits briefly before
// killing it.
func finish(cmd *exec.Cmd, stdin io.WriteCloser, done <-chan error) error {
	_, _ = io.WriteString(stdin, "q")
	_ = stdin.Close()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		return <-done
	}
}
