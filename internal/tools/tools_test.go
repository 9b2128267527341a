package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapsheet/internal/session"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	store := tablestore.NewStore(tablestore.WithLogger(logger))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return NewDispatcher(session.New(store, session.WithExportDir(t.TempDir())), logger)
}

func call(t *testing.T, d *Dispatcher, name string, args map[string]any) *Result {
	t.Helper()
	res, err := d.Call(context.Background(), name, args)
	require.NoError(t, err)
	return res
}

func TestCatalog(t *testing.T) {
	names := Names()
	assert.Len(t, names, 15)
	assert.Contains(t, names, CreateTable)
	assert.Contains(t, names, ImportCSV)

	for _, tool := range List() {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.Parameters.Type, tool.Name)
		for _, req := range tool.Parameters.Required {
			assert.Contains(t, tool.Parameters.Properties, req, tool.Name)
		}
	}

	data, err := json.Marshal(List())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"run"`)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := setupDispatcher(t)
	_, err := d.Call(context.Background(), "sort_rows", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatcher_ReadingList(t *testing.T) {
	d := setupDispatcher(t)

	res := call(t, d, CreateTable, map[string]any{"name": "Reading List", "columns": "title, status"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "reading_list", res.Active)
	assert.Equal(t, []string{"title", "status"}, res.Table.ColumnNames())

	res = call(t, d, AddRow, map[string]any{"data": "title: Dune, status: reading"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, int64(1), res.Row.ID)

	// JSON numbers arrive as float64.
	res = call(t, d, EditCell, map[string]any{"row_id": float64(1), "column": "status", "value": "finished"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, map[string]any{"title": "Dune", "status": "finished"}, res.Row.Map())

	res = call(t, d, ExportCSV, map[string]any{"filename": "books"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, filepath.Join(d.Session().ExportDir(), "books.csv"), res.Export.Path)

	data, err := os.ReadFile(res.Export.Path)
	require.NoError(t, err)
	assert.Equal(t, "title,status\nDune,finished\n", string(data))
}

func TestDispatcher_Errors(t *testing.T) {
	d := setupDispatcher(t)
	res := call(t, d, CreateTable, map[string]any{
		"name":    "Expenses",
		"columns": []any{map[string]any{"name": "item"}, "amount:real"},
	})
	require.False(t, res.IsError, res.Text)

	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		wantKind string
	}{
		{name: "unknown column", tool: AddRow, args: map[string]any{"data": map[string]any{"vendor": "x"}}, wantKind: "unknown_column"},
		{name: "missing row", tool: DeleteRow, args: map[string]any{"row_id": 99}, wantKind: "not_found"},
		{name: "missing table", tool: SwitchTable, args: map[string]any{"name": "movies"}, wantKind: "not_found"},
		{name: "duplicate column", tool: AddColumn, args: map[string]any{"column_name": "Item"}, wantKind: "invalid_schema"},
		{name: "no columns", tool: CreateTable, args: map[string]any{"name": "Empty", "columns": ""}, wantKind: "invalid_schema"},
		{name: "missing name", tool: CreateTable, args: map[string]any{"columns": "a"}, wantKind: KindInvalidArguments},
		{name: "bad row id", tool: DeleteRow, args: map[string]any{"row_id": "first"}, wantKind: KindInvalidArguments},
		{name: "fractional row id", tool: EditCell, args: map[string]any{"row_id": 1.5, "column": "item", "value": "x"}, wantKind: KindInvalidArguments},
		{name: "unexpected argument", tool: Display, args: map[string]any{"colour": "red"}, wantKind: KindInvalidArguments},
		{name: "unparseable data", tool: AddRow, args: map[string]any{"data": "just words"}, wantKind: KindInvalidArguments},
		{name: "missing import", tool: ImportCSV, args: map[string]any{"path": "/nonexistent/x.csv"}, wantKind: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, d, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Contains(t, res.Text, "Error: ")
		})
	}
}

func TestDispatcher_FractionalRowIDLeavesRow(t *testing.T) {
	d := setupDispatcher(t)
	call(t, d, CreateTable, map[string]any{"name": "Books", "columns": "title"})
	call(t, d, AddRow, map[string]any{"data": map[string]any{"title": "Dune"}})

	res := call(t, d, DeleteRow, map[string]any{"row_id": 1.7})
	assert.True(t, res.IsError)
	assert.Equal(t, KindInvalidArguments, res.Kind)
	assert.Contains(t, res.Text, "whole number")

	res = call(t, d, Display, nil)
	require.False(t, res.IsError, res.Text)
	assert.Len(t, res.Snapshot.Rows, 1)
}

func TestDecodeArgs_RowID(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{name: "int", value: 3, want: 3},
		{name: "whole float", value: float64(3), want: 3},
		{name: "numeric string", value: "3", want: 3},
		{name: "fractional float", value: 1.7, wantErr: true},
		{name: "fractional float32", value: float32(2.5), wantErr: true},
		{name: "fractional string", value: "1.7", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args rowArgs
			err := decodeArgs(map[string]any{"row_id": tt.value}, &args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, args.RowID)
		})
	}
}

func TestDispatcher_DisplayAndList(t *testing.T) {
	d := setupDispatcher(t)
	call(t, d, CreateTable, map[string]any{"name": "Tasks", "columns": []any{"task", "done:int"}})
	call(t, d, AddRow, map[string]any{"data": map[string]any{"task": "write", "done": 1}})
	call(t, d, AddRow, map[string]any{"data": map[string]any{"task": "test", "done": 0}})

	res := call(t, d, Display, map[string]any{"where": map[string]any{"done": 0}})
	require.False(t, res.IsError, res.Text)
	require.Len(t, res.Snapshot.Rows, 1)
	assert.Equal(t, "Displayed table 'Tasks' with 1 rows and 2 columns.", res.Text)

	res = call(t, d, ListTables, nil)
	assert.Len(t, res.Tables, 1)
	assert.Equal(t, "Found 1 table(s). Current: tasks", res.Text)
}

func TestDispatcher_RenameDeleteImport(t *testing.T) {
	d := setupDispatcher(t)
	call(t, d, CreateTable, map[string]any{"name": "Draft", "columns": "a"})

	res := call(t, d, RenameTable, map[string]any{"new_name": "Final"})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "final", res.Active)

	csvPath := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,score\nana,3\nbo,4\n"), 0o600))
	res = call(t, d, ImportCSV, map[string]any{"path": csvPath})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "scores", res.Active)
	assert.Equal(t, "Imported 2 rows into 'scores'.", res.Text)

	res = call(t, d, DeleteTable, nil)
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "", res.Active)

	res = call(t, d, DeleteColumn, map[string]any{"table": "final", "column_name": "a"})
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_schema", res.Kind)
}

func TestParseColumns(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []tablestore.ColumnSpec
	}{
		{
			name:  "comma string",
			input: "title, pages:int,,price:money",
			want: []tablestore.ColumnSpec{
				{Name: "title", Type: tablestore.TypeText},
				{Name: "pages", Type: tablestore.TypeInteger},
				{Name: "price", Type: tablestore.TypeReal},
			},
		},
		{
			name:  "string list",
			input: []any{"title", "rating:real"},
			want: []tablestore.ColumnSpec{
				{Name: "title", Type: tablestore.TypeText},
				{Name: "rating", Type: tablestore.TypeReal},
			},
		},
		{
			name:  "objects",
			input: []any{map[string]any{"name": " qty ", "type": "integer"}},
			want:  []tablestore.ColumnSpec{{Name: "qty", Type: tablestore.TypeInteger}},
		},
		{name: "nil", input: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColumns(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseColumns(42)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = ParseColumns([]any{true})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestParseCellPairs(t *testing.T) {
	assert.Equal(t, map[string]any{"title": "Dune", "url": "http://x"},
		ParseCellPairs("title: Dune, url: http://x"))
	assert.Equal(t, map[string]any{"a": ""}, ParseCellPairs("a:, junk, :orphan"))
	assert.Empty(t, ParseCellPairs(""))
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, "", exportPath("out", ""))
	assert.Equal(t, filepath.Join("out", "books.csv"), exportPath("out", "books"))
	assert.Equal(t, filepath.Join("out", "books.txt"), exportPath("out", "books.txt"))
	assert.Equal(t, "sub/books.csv", exportPath("out", "sub/books.csv"))
}
