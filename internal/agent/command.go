package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/leapstack-labs/leapsheet/internal/config"
)

// CommandAgent delegates translation to an external program. The request
// is written to its stdin as JSON and a Response is read from its stdout.
type CommandAgent struct {
	Command string
	Args    []string
	Timeout time.Duration

	logger *slog.Logger
}

// NewCommandAgent creates an agent from configuration. It returns nil when
// no command is configured.
func NewCommandAgent(cfg config.AgentConfig, logger *slog.Logger) *CommandAgent {
	if !cfg.Enabled() {
		return nil
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CommandAgent{
		Command: cfg.Command,
		Args:    cfg.Args,
		Timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Translate implements Agent.
func (a *CommandAgent) Translate(ctx context.Context, req *Request) (*Response, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	a.logger.Debug("agent command finished", "command", a.Command, "duration", time.Since(start), "error", err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("agent command %s: %w", a.Command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("agent command %s failed: %w: %s", a.Command, err, msg)
		}
		return nil, fmt.Errorf("agent command %s failed: %w", a.Command, err)
	}

	var resp Response
	dec := json.NewDecoder(&stdout)
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	return &resp, nil
}

// FromConfig returns the configured Agent, or nil when none is configured.
func FromConfig(cfg config.AgentConfig, logger *slog.Logger) Agent {
	if a := NewCommandAgent(cfg, logger); a != nil {
		return a
	}
	return nil
}
