package commands

import (
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
)

// PlotOptions holds options for the plot command.
type PlotOptions struct {
	Type  string
	X     string
	Y     string
	Title string
	Out   string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	opts := &PlotOptions{}

	cmd := &cobra.Command{
		Use:     "plot [table]",
		Aliases: []string{"chart"},
		Short:   "Draw a chart of a table",
		Long: `Draw a chart of a table and save it as a PNG or SVG image.

Columns holding numbers are numeric, the rest categorical. Without --type
the chart is picked from those: two numeric columns give a scatter plot,
one numeric column beside categories a bar chart, a lone numeric column a
histogram, and categories alone a bar chart of counts.

Without --out the image is written to <export_dir>/<table>_<type>.png.`,
		Example: `  # Let the data pick the chart
  leapsheet plot expenses

  # Sum amount per category as a pie chart
  leapsheet plot expenses --type pie --x category --y amount --out spend.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			callArgs := map[string]any{
				"plot_type":   opts.Type,
				"x_column":    opts.X,
				"y_column":    opts.Y,
				"title":       opts.Title,
				"output_file": opts.Out,
			}
			if len(args) == 1 {
				callArgs["table"] = args[0]
			}
			_, err = cc.runTool(cmd, tools.PlotData, callArgs)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "Chart type: bar, line, scatter, pie, histogram")
	cmd.Flags().StringVarP(&opts.X, "x", "x", "", "Column for the x axis")
	cmd.Flags().StringVarP(&opts.Y, "y", "y", "", "Numeric column for the y axis")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Chart title")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file (.png or .svg)")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"bar", "line", "scatter", "pie", "histogram"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}
