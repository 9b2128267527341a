package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsheet/internal/cli/config"
	"github.com/leapstack-labs/leapsheet/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	cfgFile = ""

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{
		"version", "tables", "create", "show", "add-row", "set", "delete-row",
		"add-column", "drop-column", "rename", "drop", "export", "import", "plot",
		"ask", "voice", "serve", "completion",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "database", "export-dir", "history-file", "output", "verbose", "log-level", "agent"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCommand_TableWorkflow(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	chdir(t, dir)

	out, _, err := run(t, "import", "books.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rows into 'books'.")

	_, _, err = run(t, "add-column", "status", "--default", "unread", "-t", "books")
	require.NoError(t, err)

	_, _, err = run(t, "set", "1", "status", "finished")
	require.NoError(t, err)

	out, _, err = run(t, "show", "books")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertMarkdownTable(t, out, "row_id", "title", "pages", "rating", "status")
	assert.Contains(t, out, "| 1 | Dune |")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "unread")

	out, _, err = run(t, "show", "books", "--where", "status=unread")
	require.NoError(t, err)
	assert.Contains(t, out, "Emma")
	assert.NotContains(t, out, "Dune")

	_, _, err = run(t, "export", "books")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "exports", "books.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title,pages,rating,status", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Dune,412,"), lines[1])

	out, _, err = run(t, "plot", "books", "--type", "bar", "--x", "title", "--y", "pages")
	require.NoError(t, err)
	assert.Contains(t, out, "Created bar chart of 'books'")
	_, err = os.Stat(filepath.Join(dir, "exports", "books_bar.png"))
	require.NoError(t, err)

	_, _, err = run(t, "rename", "books", "Reading List")
	require.NoError(t, err)

	out, _, err = run(t, "tables", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"identifier": "reading_list"`)

	_, _, err = run(t, "drop", "Reading List")
	require.NoError(t, err)
	_, _, err = run(t, "show", "reading_list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRootCommand_Errors(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	chdir(t, dir)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad output mode", []string{"tables", "-o", "xml"}, "xml"},
		{"bad log level", []string{"tables", "--log-level", "loud"}, "log_level"},
		{"missing config", []string{"tables", "--config", "nope.yaml"}, "nope.yaml"},
		{"unknown table", []string{"show", "nope"}, "not found"},
		{"bad row id", []string{"set", "x", "title", "y"}, "invalid row id"},
		{"bad assignment", []string{"add-row", "title"}, "column=value"},
		{"ask without agent", []string{"ask", "add", "a", "row"}, "agent.command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRootCommand_MemoryDatabase(t *testing.T) {
	chdir(t, t.TempDir())

	out, _, err := run(t, "--database", ":memory:", "create", "Groceries", "item", "qty:integer")
	require.NoError(t, err)
	assert.Contains(t, out, "Created table 'Groceries' with columns: item, qty.")

	_, err = os.Stat(":memory:")
	assert.True(t, os.IsNotExist(err), "in-memory database must not create a file")
}

func TestRootCommand_Version(t *testing.T) {
	chdir(t, t.TempDir())
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapsheet v"+Version)
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
