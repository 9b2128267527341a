package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxParallelExports bounds concurrent exports for --all.
const maxParallelExports = 4

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Out     string
	All     bool
	WithIDs bool
}

// exportStatus is one table's outcome in an --all export.
type exportStatus struct {
	Table  string `json:"table"`
	Path   string `json:"path,omitempty"`
	Rows   int    `json:"rows"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export [table]",
		Short: "Export a table to CSV",
		Long: `Export a table to a CSV file.

The header row holds the column names and rows follow in row id order.
Without --out the file is written to <export_dir>/<table>.csv. The file is
written to a temporary name first and renamed, so a failed export never
leaves a partial file behind.`,
		Example: `  # Export one table
  leapsheet export "Reading List"

  # Export to a chosen path, including row ids
  leapsheet export books --out ~/books.csv --with-ids

  # Export every table into the export directory
  leapsheet export --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All && (len(args) > 0 || opts.Out != "") {
				return fmt.Errorf("--all cannot be combined with a table or --out")
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			exportOpts := tablestore.ExportOptions{IncludeRowID: opts.WithIDs}
			if opts.All {
				return exportAll(cmd.Context(), cc, exportOpts)
			}

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			res, err := cc.Session.Export(cmd.Context(), ref, opts.Out, exportOpts)
			if err != nil {
				return err
			}
			if ok, err := cc.Renderer.Structured(res); ok {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("Exported %d rows to %s", res.Rows, res.Path))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file (default: <export_dir>/<table>.csv)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Export every table")
	cmd.Flags().BoolVar(&opts.WithIDs, "with-ids", false, "Include the row_id column")

	return cmd
}

func exportAll(ctx context.Context, cc *CommandContext, opts tablestore.ExportOptions) error {
	tables, err := cc.Session.Tables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		cc.Renderer.Muted("No tables to export.")
		return nil
	}

	statuses := make([]exportStatus, len(tables))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelExports)

	for i, t := range tables {
		i, t := i, t
		eg.Go(func() error {
			st := exportStatus{Table: t.DisplayName}
			res, err := cc.Session.Export(egctx, t.Identifier, "", opts)
			if err != nil {
				// One failed table does not cancel the others.
				st.Status = "failed"
				st.Error = err.Error()
				cc.Logger.Warn("export failed", "table", t.Identifier, "error", err)
			} else {
				st.Status = "exported"
				st.Path = res.Path
				st.Rows = res.Rows
			}
			statuses[i] = st
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, st := range statuses {
		if st.Status == "failed" {
			failed++
		}
	}

	if ok, err := cc.Renderer.Structured(statuses); ok {
		if err != nil {
			return err
		}
	} else {
		for _, st := range statuses {
			detail := st.Error
			if detail == "" {
				detail = fmt.Sprintf("%d rows -> %s", st.Rows, st.Path)
			}
			cc.Renderer.StatusLine(st.Table, st.Status, detail)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(statuses))
	}
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create a table from a CSV file",
		Long: `Create a table from a CSV file. The first row names the columns and
column types are inferred from the data.`,
		Example: `  leapsheet import books.csv
  leapsheet import data/2024.csv --name "Expenses 2024"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			callArgs := map[string]any{"path": args[0]}
			if name != "" {
				callArgs["name"] = name
			}
			_, err = cc.runTool(cmd, tools.ImportCSV, callArgs)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Table name (default: file name)")
	return cmd
}
