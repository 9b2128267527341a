package commands

import (
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tables",
		Aliases: []string{"ls"},
		Short:   "List all tables",
		Long: `List every table in the catalog with its columns.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, csv, yaml`,
		Example: `  # List tables
  leapsheet tables

  # List tables as JSON
  leapsheet tables -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.ListTables, nil)
			return err
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [column[:type]...]",
		Short: "Create a table",
		Long: `Create a table with the given columns.

Column types are text (default), integer and real. The table's
storage identifier is derived from its name; if it is taken a numeric
suffix is added.`,
		Example: `  leapsheet create "Reading List" title status
  leapsheet create expenses description amount:real quantity:integer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.CreateTable, map[string]any{
				"name":    args[0],
				"columns": args[1:],
			})
			return err
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	var where []string

	cmd := &cobra.Command{
		Use:     "show [table]",
		Aliases: []string{"display"},
		Short:   "Show the rows of a table",
		Long: `Show the rows of a table in row id order.

Without a table argument the first table is shown. --where filters rows by
column equality and may be repeated; all filters must match.`,
		Example: `  leapsheet show "Reading List"
  leapsheet show books --where status=finished
  leapsheet show books -o csv > books.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			filters, err := parseAssignments(where)
			if err != nil {
				return err
			}
			callArgs := map[string]any{"where": filters}
			if len(args) == 1 {
				callArgs["table"] = args[0]
			}

			_, err = cc.runTool(cmd, tools.Display, callArgs)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Filter rows by column=value (repeatable)")
	return cmd
}

// NewRenameCommand creates the rename command.
func NewRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <table> <new-name>",
		Short: "Rename a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.RenameTable, map[string]any{
				"table":    args[0],
				"new_name": args[1],
			})
			return err
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Delete a table and its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = cc.runTool(cmd, tools.DeleteTable, map[string]any{"table": args[0]})
			return err
		},
	}
}
