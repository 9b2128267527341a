package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
)

// addTableFlag registers the --table flag shared by row and column commands.
func addTableFlag(cmd *cobra.Command, table *string) {
	cmd.Flags().StringVarP(table, "table", "t", "", "Table to modify (default: first table)")
}

func withTable(args map[string]any, table string) map[string]any {
	if table != "" {
		args["table"] = table
	}
	return args
}

func parseRowID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid row id %q", s)
	}
	return id, nil
}

// NewAddRowCommand creates the add-row command.
func NewAddRowCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "add-row [column=value...]",
		Short: "Append a row",
		Long: `Append a row to a table. Columns not given are left empty.

The new row's id is printed; ids are never reused after a delete.`,
		Example: `  leapsheet add-row -t "Reading List" title=Dune status=reading`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cells, err := parseAssignments(args)
			if err != nil {
				return err
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.AddRow, withTable(map[string]any{"data": cells}, table))
			return err
		},
	}

	addTableFlag(cmd, &table)
	return cmd
}

// NewSetCommand creates the set command.
func NewSetCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:     "set <row-id> <column> <value>",
		Aliases: []string{"edit"},
		Short:   "Change one cell",
		Example: `  leapsheet set 1 status finished -t "Reading List"`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRowID(args[0])
			if err != nil {
				return err
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.EditCell, withTable(map[string]any{
				"row_id": id,
				"column": args[1],
				"value":  args[2],
			}, table))
			return err
		},
	}

	addTableFlag(cmd, &table)
	return cmd
}

// NewDeleteRowCommand creates the delete-row command.
func NewDeleteRowCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "delete-row <row-id>",
		Short: "Delete a row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRowID(args[0])
			if err != nil {
				return err
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.DeleteRow, withTable(map[string]any{"row_id": id}, table))
			return err
		},
	}

	addTableFlag(cmd, &table)
	return cmd
}

// NewAddColumnCommand creates the add-column command.
func NewAddColumnCommand() *cobra.Command {
	var (
		table string
		def   string
	)

	cmd := &cobra.Command{
		Use:   "add-column <name[:type]>",
		Short: "Add a column",
		Long: `Add a column to a table. Existing rows get --default, or stay
empty when no default is given.`,
		Example: `  leapsheet add-column rating:integer -t books --default 0`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			spec := tablestore.ParseColumnSpec(args[0])
			callArgs := map[string]any{"column_name": spec.Name, "type": string(spec.Type)}
			if cmd.Flags().Changed("default") {
				callArgs["default_value"] = def
			}
			_, err = cc.runTool(cmd, tools.AddColumn, withTable(callArgs, table))
			return err
		},
	}

	addTableFlag(cmd, &table)
	cmd.Flags().StringVar(&def, "default", "", "Value for existing rows")
	return cmd
}

// NewDropColumnCommand creates the drop-column command.
func NewDropColumnCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "drop-column <name>",
		Short: "Remove a column and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.DeleteColumn, withTable(map[string]any{"column_name": args[0]}, table))
			return err
		},
	}

	addTableFlag(cmd, &table)
	return cmd
}
