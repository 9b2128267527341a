// Package tools exposes session operations as named tools with JSON
// parameter schemas, the form in which a language model asks for them.
package tools

import (
	"context"
	"sort"
)

// Tool names.
const (
	CreateTable  = "create_table"
	ListTables   = "list_tables"
	SwitchTable  = "switch_table"
	AddColumn    = "add_column"
	DeleteColumn = "delete_column"
	AddRow       = "add_row"
	EditCell     = "edit_cell"
	DeleteRow    = "delete_row"
	GetRow       = "get_row"
	Display      = "display"
	ExportCSV    = "export_csv"
	RenameTable  = "rename_table"
	DeleteTable  = "delete_table"
	ImportCSV    = "import_csv"
	PlotData     = "plot_data"
)

// Tool describes one callable operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`

	run func(ctx context.Context, d *Dispatcher, args map[string]any) (*Result, error)
}

// Schema is the JSON Schema object describing a tool's arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one argument of a tool. Type is a string or a list of
// strings when several JSON types are accepted.
type Property struct {
	Type        any       `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

func object(required []string, props map[string]Property) Schema {
	return Schema{Type: "object", Properties: props, Required: required}
}

var tableProp = Property{
	Type:        "string",
	Description: "Table name. Defaults to the active table.",
}

var registry = map[string]*Tool{}

func register(t *Tool) {
	registry[t.Name] = t
}

func init() {
	register(&Tool{
		Name:        CreateTable,
		Description: "Create a new table with the given columns and make it the active table. Use this when the user wants to start a new table or spreadsheet.",
		Parameters: object([]string{"name", "columns"}, map[string]Property{
			"name": {Type: "string", Description: "Display name of the table."},
			"columns": {
				Type:        []string{"array", "string"},
				Description: `Columns as a list of {"name","type"} objects, a list of "name:type" strings, or a comma-separated string. Types: text, integer, real.`,
			},
		}),
		run: runCreateTable,
	})
	register(&Tool{
		Name:        ListTables,
		Description: "List all tables and show which one is active.",
		Parameters:  object(nil, map[string]Property{}),
		run:         runListTables,
	})
	register(&Tool{
		Name:        SwitchTable,
		Description: "Make another table the active table.",
		Parameters: object([]string{"name"}, map[string]Property{
			"name": {Type: "string", Description: "Table name."},
		}),
		run: runSwitchTable,
	})
	register(&Tool{
		Name:        AddColumn,
		Description: "Add a column to a table. Existing rows receive the default value.",
		Parameters: object([]string{"column_name"}, map[string]Property{
			"table":         tableProp,
			"column_name":   {Type: "string", Description: "Name of the new column."},
			"type":          {Type: "string", Description: "text, integer or real. Defaults to text."},
			"default_value": {Description: "Value stored in existing rows."},
		}),
		run: runAddColumn,
	})
	register(&Tool{
		Name:        DeleteColumn,
		Description: "Delete a column and its data from a table.",
		Parameters: object([]string{"column_name"}, map[string]Property{
			"table":       tableProp,
			"column_name": {Type: "string", Description: "Column to delete."},
		}),
		run: runDeleteColumn,
	})
	register(&Tool{
		Name:        AddRow,
		Description: "Add a row to a table. Columns left out are empty.",
		Parameters: object([]string{"data"}, map[string]Property{
			"table": tableProp,
			"data": {
				Type:        []string{"object", "string"},
				Description: `Cell values keyed by column, or a "column:value, column:value" string.`,
			},
		}),
		run: runAddRow,
	})
	register(&Tool{
		Name:        EditCell,
		Description: "Change a single cell, addressed by row id and column name.",
		Parameters: object([]string{"row_id", "column", "value"}, map[string]Property{
			"table":  tableProp,
			"row_id": {Type: "integer", Description: "Row id as shown in the table."},
			"column": {Type: "string", Description: "Column name."},
			"value":  {Description: "New value. Null clears the cell."},
		}),
		run: runEditCell,
	})
	register(&Tool{
		Name:        DeleteRow,
		Description: "Delete a row by its id.",
		Parameters: object([]string{"row_id"}, map[string]Property{
			"table":  tableProp,
			"row_id": {Type: "integer", Description: "Row id as shown in the table."},
		}),
		run: runDeleteRow,
	})
	register(&Tool{
		Name:        GetRow,
		Description: "Fetch a single row by its id.",
		Parameters: object([]string{"row_id"}, map[string]Property{
			"table":  tableProp,
			"row_id": {Type: "integer", Description: "Row id as shown in the table."},
		}),
		run: runGetRow,
	})
	register(&Tool{
		Name:        Display,
		Description: "Show the contents of a table. Use this to show the user the current state of the data.",
		Parameters: object(nil, map[string]Property{
			"table": tableProp,
			"where": {Type: "object", Description: "Equality filters keyed by column. Null matches empty cells."},
		}),
		run: runDisplay,
	})
	register(&Tool{
		Name:        ExportCSV,
		Description: "Export a table to a CSV file.",
		Parameters: object(nil, map[string]Property{
			"table":          tableProp,
			"filename":       {Type: "string", Description: "Target file. Defaults to <export dir>/<table>.csv."},
			"include_row_id": {Type: "boolean", Description: "Add a leading row_id column."},
		}),
		run: runExportCSV,
	})
	register(&Tool{
		Name:        RenameTable,
		Description: "Give a table a new name.",
		Parameters: object([]string{"new_name"}, map[string]Property{
			"table":    tableProp,
			"new_name": {Type: "string", Description: "New display name."},
		}),
		run: runRenameTable,
	})
	register(&Tool{
		Name:        DeleteTable,
		Description: "Delete a table and all of its rows.",
		Parameters: object(nil, map[string]Property{
			"table": tableProp,
		}),
		run: runDeleteTable,
	})
	register(&Tool{
		Name:        ImportCSV,
		Description: "Create a table from a CSV file whose first line is the header. Column types are inferred.",
		Parameters: object([]string{"path"}, map[string]Property{
			"path": {Type: "string", Description: "CSV file to read."},
			"name": {Type: "string", Description: "Table name. Defaults to the file name."},
		}),
		run: runImportCSV,
	})
	register(&Tool{
		Name:        PlotData,
		Description: "Draw a chart of a table and save it as an image. Every argument is optional; without them the chart type and axes are picked from the data.",
		Parameters: object(nil, map[string]Property{
			"table":       tableProp,
			"plot_type":   {Type: "string", Description: "bar, line, scatter, pie or histogram."},
			"x_column":    {Type: "string", Description: "Column for the x axis, or the categories of a pie."},
			"y_column":    {Type: "string", Description: "Numeric column for the y axis. Pie charts sum it per category."},
			"title":       {Type: "string", Description: "Chart title."},
			"output_file": {Type: "string", Description: "Image file, .png or .svg. Defaults to <export dir>/<table>_<type>.png."},
		}),
		run: runPlotData,
	})
}

// Get returns the tool with the given name.
func Get(name string) (*Tool, bool) {
	t, ok := registry[name]
	return t, ok
}

// List returns every tool sorted by name.
func List() []*Tool {
	out := make([]*Tool, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every tool name sorted.
func Names() []string {
	tools := List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
