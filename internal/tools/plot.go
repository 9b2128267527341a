package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/plot"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
)

// PlotResult describes a chart written by plot_data.
type PlotResult struct {
	Path  string `json:"path"`
	Type  string `json:"plot_type"`
	X     string `json:"x_column"`
	Y     string `json:"y_column,omitempty"`
	Title string `json:"title"`
}

func runPlotData(ctx context.Context, d *Dispatcher, raw map[string]any) (*Result, error) {
	var args plotArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	snap, err := d.session.Read(ctx, args.Table, nil)
	if err != nil {
		return nil, err
	}

	p, err := plot.NewPlan(snap, plot.Options{
		Kind:  args.PlotType,
		X:     args.XColumn,
		Y:     args.YColumn,
		Title: args.Title,
	})
	if err != nil {
		return nil, plotError(err)
	}

	path := plotPath(d.session.ExportDir(), args.OutputFile, snap.Table.Identifier, p.Kind)
	if err := plot.WriteFile(path, snap, p); err != nil {
		if errors.Is(err, plot.ErrUnsuitable) {
			return nil, plotError(err)
		}
		return nil, &tablestore.Error{Kind: tablestore.ErrStorage, Op: PlotData, Msg: "write " + path, Err: err}
	}

	d.logger.Debug("plotted table", "table", snap.Table.Identifier, "type", p.Kind, "path", path)
	return &Result{
		Text:  fmt.Sprintf("Created %s chart of '%s': %s", p.Kind, snap.Table.DisplayName, path),
		Table: snap.Table,
		Plot: &PlotResult{
			Path:  path,
			Type:  string(p.Kind),
			X:     p.X,
			Y:     p.Y,
			Title: p.Title,
		},
	}, nil
}

func plotError(err error) error {
	switch {
	case errors.Is(err, plot.ErrUnknownColumn):
		return &tablestore.Error{Kind: tablestore.ErrUnknownColumn, Op: PlotData, Msg: err.Error()}
	case errors.Is(err, plot.ErrNoData):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
}

// plotPath resolves where a chart is written. Names without a .png or
// .svg extension get .png; bare names land in dir.
func plotPath(dir, filename, identifier string, kind plot.Kind) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return filepath.Join(dir, fmt.Sprintf("%s_%s.png", identifier, kind))
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".svg":
	default:
		filename += ".png"
	}
	return inDir(dir, filename)
}
