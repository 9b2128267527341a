package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/plot"
	"github.com/leapstack-labs/leapsheet/internal/session"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
)

// ErrUnknownTool is returned by Dispatcher.Call for unregistered names.
var ErrUnknownTool = errors.New("unknown tool")

// KindInvalidArguments is the Result.Kind for argument decoding failures.
const KindInvalidArguments = "invalid_arguments"

// KindNoData is the Result.Kind for charts of empty tables.
const KindNoData = "no_data"

// KindUnknownTool is the Result.Kind reported for calls to unregistered tools.
const KindUnknownTool = "unknown_tool"

// Call is a structured request to run a tool.
type Call struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the outcome of a tool call. Failures of the operation itself
// are reported with IsError set rather than as a Go error, so a model can
// read the message and try again.
type Result struct {
	Tool     string                   `json:"tool"`
	Text     string                   `json:"text"`
	IsError  bool                     `json:"is_error,omitempty"`
	Kind     string                   `json:"kind,omitempty"`
	Active   string                   `json:"active,omitempty"`
	Table    *tablestore.Table        `json:"table,omitempty"`
	Tables   []*tablestore.Table      `json:"tables,omitempty"`
	Snapshot *tablestore.Snapshot     `json:"snapshot,omitempty"`
	Row      *tablestore.Row          `json:"row,omitempty"`
	Export   *tablestore.ExportResult `json:"export,omitempty"`
	Plot     *PlotResult              `json:"plot,omitempty"`
}

// Dispatcher runs tool calls against a session.
type Dispatcher struct {
	session *session.Session
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher for s.
func NewDispatcher(s *session.Session, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{session: s, logger: logger}
}

// Session returns the session calls are applied to.
func (d *Dispatcher) Session() *session.Session {
	return d.session
}

// Call runs the named tool. The only Go error is ErrUnknownTool.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	d.logger.Debug("tool call", "tool", name, "args", args)
	res, err := t.run(ctx, d, args)
	if err != nil {
		res = errorResult(err)
	}
	res.Tool = name
	res.Active = d.session.Active()
	if res.IsError {
		d.logger.Debug("tool failed", "tool", name, "kind", res.Kind, "error", res.Text)
	}
	return res, nil
}

// Apply runs a Call.
func (d *Dispatcher) Apply(ctx context.Context, c Call) (*Result, error) {
	return d.Call(ctx, c.Name, c.Args)
}

func errorResult(err error) *Result {
	kind := tablestore.KindOf(err)
	switch {
	case kind != "":
	case errors.Is(err, plot.ErrNoData):
		kind = KindNoData
	case errors.Is(err, ErrInvalidArguments):
		kind = KindInvalidArguments
	}
	return &Result{Text: "Error: " + err.Error(), IsError: true, Kind: kind}
}

func runCreateTable(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args createTableArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireArg("name", args.Name); err != nil {
		return nil, err
	}
	specs, err := ParseColumns(args.Columns)
	if err != nil {
		return nil, err
	}

	t, err := d.session.CreateTable(ctx, args.Name, specs)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  fmt.Sprintf("Created table '%s' with columns: %s.", t.DisplayName, strings.Join(t.ColumnNames(), ", ")),
		Table: t,
	}, nil
}

func runListTables(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	if err := decodeArgs(raw, &struct{}{}); err != nil {
		return nil, err
	}
	tables, err := d.session.Tables(ctx)
	if err != nil {
		return nil, err
	}
	current := d.session.Active()
	if current == "" {
		current = "none selected"
	}
	return &Result{
		Text:   fmt.Sprintf("Found %d table(s). Current: %s", len(tables), current),
		Tables: tables,
	}, nil
}

func runSwitchTable(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args nameArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	t, err := d.session.Switch(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	snap, err := d.session.Read(ctx, t.Identifier, nil)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:     fmt.Sprintf("Switched to table '%s'.", t.DisplayName),
		Table:    t,
		Snapshot: snap,
	}, nil
}

func runAddColumn(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args addColumnArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	spec := tablestore.ColumnSpec{Name: args.ColumnName, Type: tablestore.ParseColumnType(args.Type)}
	t, err := d.session.AddColumn(ctx, args.Table, spec, args.DefaultValue)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  fmt.Sprintf("Added column '%s' to '%s'.", strings.TrimSpace(args.ColumnName), t.DisplayName),
		Table: t,
	}, nil
}

func runDeleteColumn(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args deleteColumnArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	t, err := d.session.DeleteColumn(ctx, args.Table, args.ColumnName)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  fmt.Sprintf("Deleted column '%s' from '%s'.", args.ColumnName, t.DisplayName),
		Table: t,
	}, nil
}

func runAddRow(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args addRowArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	cells, err := ParseCells(args.Data)
	if err != nil {
		return nil, err
	}
	row, err := d.session.InsertRow(ctx, args.Table, cells)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Added row %d.", row.ID), Row: row}, nil
}

func runEditCell(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args editCellArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	row, err := d.session.UpdateCell(ctx, args.Table, args.RowID, args.Column, args.Value)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("Updated row %d, column '%s' to '%s'.", args.RowID, args.Column, tablestore.FormatValue(args.Value)),
		Row:  row,
	}, nil
}

func runDeleteRow(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args rowArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := d.session.DeleteRow(ctx, args.Table, args.RowID); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Deleted row %d.", args.RowID)}, nil
}

func runGetRow(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args rowArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	row, err := d.session.Row(ctx, args.Table, args.RowID)
	if err != nil {
		return nil, err
	}
	pairs := make([]string, len(row.Columns))
	for i, c := range row.Columns {
		pairs[i] = c + ": " + tablestore.FormatValue(row.Values[i])
	}
	return &Result{Text: fmt.Sprintf("Row %d: %s", row.ID, strings.Join(pairs, ", ")), Row: row}, nil
}

func runDisplay(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args displayArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	snap, err := d.session.Read(ctx, args.Table, args.Where)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("Displayed table '%s' with %d rows and %d columns.",
			snap.Table.DisplayName, len(snap.Rows), len(snap.Table.Columns)),
		Table:    snap.Table,
		Snapshot: snap,
	}, nil
}

func runExportCSV(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args exportArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	path := exportPath(d.session.ExportDir(), args.Filename)
	res, err := d.session.Export(ctx, args.Table, path, tablestore.ExportOptions{IncludeRowID: args.IncludeRowID})
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:   fmt.Sprintf("Exported %d rows to %s", res.Rows, res.Path),
		Export: res,
	}, nil
}

// exportPath places bare file names in dir and adds a missing .csv
// extension. Paths with a directory component are used as given.
func exportPath(dir, filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return ""
	}
	if filepath.Ext(filename) == "" {
		filename += ".csv"
	}
	return inDir(dir, filename)
}

func inDir(dir, filename string) string {
	if filepath.IsAbs(filename) || strings.ContainsRune(filename, filepath.Separator) || strings.Contains(filename, "/") {
		return filename
	}
	return filepath.Join(dir, filename)
}

func runRenameTable(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args renameArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	t, err := d.session.Rename(ctx, args.Table, args.NewName)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Renamed table to '%s'.", t.DisplayName), Table: t}, nil
}

func runDeleteTable(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args tableArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	t, err := d.session.Delete(ctx, args.Table)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("Deleted table '%s'.", t.DisplayName)}, nil
}

func runImportCSV(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args importArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireArg("path", args.Path); err != nil {
		return nil, err
	}

	f, err := os.Open(args.Path)
	if err != nil {
		return nil, &tablestore.Error{Kind: tablestore.ErrNotFound, Op: ImportCSV, Msg: "cannot open " + args.Path, Err: err}
	}
	defer func() { _ = f.Close() }()

	name := args.Name
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(args.Path), filepath.Ext(args.Path))
	}

	t, n, err := d.session.Import(ctx, name, f)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  fmt.Sprintf("Imported %d rows into '%s'.", n, t.DisplayName),
		Table: t,
	}, nil
}
