package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapsheet/internal/agent"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
)

// repl is an interactive session. Lines starting with "!" are commands;
// anything else is handed to the agent.
type repl struct {
	cc    *CommandContext
	agent agent.Agent
	// listen records a spoken request; nil disables !voice.
	listen func(ctx context.Context) (string, error)
}

func newREPL(cc *CommandContext) *repl {
	s := &repl{
		cc:    cc,
		agent: agent.FromConfig(cc.Cfg.Agent, cc.Logger),
	}
	s.listen = func(ctx context.Context) (string, error) {
		return listen(ctx, cc)
	}
	return s
}

// RunREPL starts the interactive session on the command's terminal.
func RunREPL(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	s := newREPL(cc)

	historyFile := cc.Cfg.HistoryFile
	if historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(historyFile), 0750); err != nil {
			cc.Logger.Warn("history disabled", "error", err)
			historyFile = ""
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       "!quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.welcome(ctx)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if quit := s.handle(ctx, line); quit {
			break
		}
		rl.SetPrompt(s.prompt())
	}
	return nil
}

func (s *repl) prompt() string {
	p := "leapsheet> "
	if active := s.cc.Session.Active(); active != "" {
		p = fmt.Sprintf("leapsheet[%s]> ", active)
	}
	return s.cc.Renderer.Styles().Prompt.Render(p)
}

func (s *repl) welcome(ctx context.Context) {
	r := s.cc.Renderer
	r.Header(1, "leapsheet")
	r.Muted(fmt.Sprintf("Tables are stored in %s", s.cc.Store.Path()))
	if s.agent == nil {
		r.Muted("Natural-language input is off. " + agentHint)
	}
	r.Muted("Type !help for commands, !quit to exit.")

	if t, err := s.cc.Session.ActiveTable(ctx); err == nil && t != nil {
		s.display(ctx, "")
	}
}

// handle processes one input line and reports whether the session ends.
func (s *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "!") {
		return s.bang(ctx, line)
	}
	s.ask(ctx, line)
	return false
}

func (s *repl) bang(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	r := s.cc.Renderer

	switch strings.ToLower(name) {
	case "!quit", "!exit", "!q":
		r.Muted("Goodbye.")
		return true

	case "!help", "!h":
		printREPLHelp(r.Writer())

	case "!show", "!display", "!d":
		s.display(ctx, rest)

	case "!list", "!ls":
		s.call(ctx, tools.ListTables, nil)

	case "!use":
		if rest == "" {
			r.Error("Usage: !use <table>")
			return false
		}
		s.call(ctx, tools.SwitchTable, map[string]any{"name": rest})

	case "!export":
		s.call(ctx, tools.ExportCSV, exportArgs(rest))

	case "!voice", "!v":
		return s.voice(ctx)

	case "!call":
		s.rawCall(ctx, rest)

	case "!clear":
		_, _ = fmt.Fprint(r.Writer(), "\033[H\033[2J")

	default:
		r.Error(fmt.Sprintf("Unknown command: %s (type !help for commands)", name))
	}
	return false
}

// exportArgs parses "[table] [file.csv]". A single argument ending in .csv
// is taken as the file for the active table.
func exportArgs(rest string) map[string]any {
	args := map[string]any{}
	fields := strings.Fields(rest)
	switch {
	case len(fields) == 0:
	case len(fields) == 1 && strings.HasSuffix(strings.ToLower(fields[0]), ".csv"):
		args["filename"] = fields[0]
	case len(fields) > 1 && strings.HasSuffix(strings.ToLower(fields[len(fields)-1]), ".csv"):
		args["table"] = strings.Join(fields[:len(fields)-1], " ")
		args["filename"] = fields[len(fields)-1]
	default:
		args["table"] = rest
	}
	return args
}

func (s *repl) display(ctx context.Context, table string) {
	args := map[string]any{}
	if table != "" {
		args["table"] = table
	}
	s.call(ctx, tools.Display, args)
}

func (s *repl) call(ctx context.Context, name string, args map[string]any) {
	res, err := s.cc.Dispatcher.Call(ctx, name, args)
	if err != nil {
		s.cc.Renderer.Error(err.Error())
		return
	}
	if err := s.cc.Renderer.Result(res); err != nil {
		s.cc.Renderer.Error(err.Error())
	}
}

// rawCall runs "!call <tool> [json-args]".
func (s *repl) rawCall(ctx context.Context, rest string) {
	name, raw, _ := strings.Cut(rest, " ")
	if name == "" {
		s.cc.Renderer.Error("Usage: !call <tool> [json arguments]. Tools: " + strings.Join(tools.Names(), ", "))
		return
	}

	var args map[string]any
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			s.cc.Renderer.Error(fmt.Sprintf("invalid JSON arguments: %v", err))
			return
		}
	}
	s.call(ctx, name, args)
}

func (s *repl) ask(ctx context.Context, input string) {
	r := s.cc.Renderer
	if s.agent == nil {
		r.Warning("Not a command. " + agentHint + " Type !help for commands.")
		return
	}

	sp := r.NewSpinner("Thinking...")
	out, err := agent.Run(ctx, s.agent, s.cc.Dispatcher, input, s.cc.Logger)
	sp.Stop()
	if err != nil {
		r.Error(err.Error())
		return
	}
	if err := renderOutcome(r, out); err != nil {
		r.Error(err.Error())
	}
}

// voice handles a spoken line exactly like a typed one, so a spoken
// "!quit" ends the session too.
func (s *repl) voice(ctx context.Context) bool {
	if s.listen == nil {
		s.cc.Renderer.Error("voice input is not available")
		return false
	}
	text, err := s.listen(ctx)
	if err != nil {
		s.cc.Renderer.Error(err.Error())
		return false
	}
	return s.handle(ctx, text)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  !help, !h                 Show this help message
  !list, !ls                List tables
  !use <table>              Make a table active
  !show, !d [table]         Show a table (default: active table)
  !export [table] [file]    Export to CSV (default: <export_dir>/<table>.csv)
  !voice, !v                Speak a request (Ctrl-C stops recording)
  !call <tool> [json]       Run a tool directly, e.g. !call add_row {"data": {"title": "Dune"}}
  !clear                    Clear the screen
  !quit, !exit, !q          Exit

Anything else is sent to the agent as a natural-language request, e.g.
  make a reading list with title and status
  add Dune, status reading
  change row 1 status to finished

Tips:
  - Use arrow keys to navigate history
  - Tab completion works for commands and table names
`
	_, _ = fmt.Fprintln(w, help)
}

// completer completes bang commands, table names and tool names.
func (s *repl) completer(ctx context.Context) *readline.PrefixCompleter {
	tableNames := func(string) []string {
		tables, err := s.cc.Session.Tables(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, 0, len(tables))
		for _, t := range tables {
			names = append(names, t.DisplayName)
		}
		return names
	}
	toolNames := func(string) []string { return tools.Names() }

	return readline.NewPrefixCompleter(
		readline.PcItem("!help"),
		readline.PcItem("!list"),
		readline.PcItem("!use", readline.PcItemDynamic(tableNames)),
		readline.PcItem("!show", readline.PcItemDynamic(tableNames)),
		readline.PcItem("!export", readline.PcItemDynamic(tableNames)),
		readline.PcItem("!voice"),
		readline.PcItem("!call", readline.PcItemDynamic(toolNames)),
		readline.PcItem("!clear"),
		readline.PcItem("!quit"),
		readline.PcItem("!exit"),
	)
}
