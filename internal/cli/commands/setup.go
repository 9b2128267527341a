package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/cli/config"
	"github.com/leapstack-labs/leapsheet/internal/cli/output"
	"github.com/leapstack-labs/leapsheet/internal/session"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Store      *tablestore.Store
	Session    *session.Session
	Dispatcher *tools.Dispatcher
	Renderer   *output.Renderer
}

// NewCommandContext opens the table store and builds a session over it.
// The first table is selected so commands without a table argument have
// a target. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStore(cmd)

	store := tablestore.NewStore(tablestore.WithLogger(cc.Logger))
	if err := store.Open(cc.Cfg.DatabasePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open table store: %w", err)
	}

	cc.Store = store
	cc.Session = session.New(store,
		session.WithExportDir(cc.Cfg.ExportDir),
		session.WithLogger(cc.Logger),
	)
	cc.Dispatcher = tools.NewDispatcher(cc.Session, cc.Logger)

	if _, err := cc.Session.AutoSelect(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			cc.Logger.Warn("failed to close table store", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that don't need database access.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, falling back to defaults
// when no config has been loaded (commands built outside the root).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// runTool dispatches a tool call and renders its result. A failed call is
// returned as an error so the process exits non-zero.
func (cc *CommandContext) runTool(cmd *cobra.Command, name string, args map[string]any) (*tools.Result, error) {
	res, err := cc.Dispatcher.Call(cmd.Context(), name, args)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return res, errors.New(strings.TrimPrefix(res.Text, "Error: "))
	}
	return res, cc.Renderer.Result(res)
}

// parseAssignments parses "column=value" arguments. A bare "column=" sets
// an empty string.
func parseAssignments(args []string) (map[string]any, error) {
	cells := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected column=value, got %q", arg)
		}
		cells[key] = value
	}
	return cells, nil
}
