// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsheet/internal/cli/output"
)

// SetupTestProject creates a temporary project: a leapsheet.yaml pointing
// at a database and export directory inside it, plus a books.csv to import.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := `database: data/sheets.db
export_dir: exports
history_file: data/history
output: markdown
`
	if err := os.WriteFile(filepath.Join(tmpDir, "leapsheet.yaml"), []byte(cfg), 0600); err != nil {
		t.Fatalf("failed to create leapsheet.yaml: %v", err)
	}

	books := `title,pages,rating
Dune,412,4.5
Emma,474,
`
	if err := os.WriteFile(filepath.Join(tmpDir, "books.csv"), []byte(books), 0600); err != nil {
		t.Fatalf("failed to create books.csv: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing to buffers. Buffers are never
// terminals, so auto mode resolves to markdown.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertMarkdownTable checks that md holds a pipe table whose header row
// lists columns in order.
func AssertMarkdownTable(t *testing.T, md string, columns ...string) {
	t.Helper()
	header := "| " + strings.Join(columns, " | ") + " |"
	for _, line := range strings.Split(md, "\n") {
		if strings.TrimSpace(line) == header {
			return
		}
	}
	t.Errorf("no markdown table with header %q in:\n%s", header, md)
}
