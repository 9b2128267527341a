package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *tablestore.Snapshot {
	t := &tablestore.Table{
		DisplayName: "Reading List",
		Identifier:  "reading_list",
		Columns: []tablestore.Column{
			{Name: "title", Type: tablestore.TypeText, Identifier: "title"},
			{Name: "status", Type: tablestore.TypeText, Identifier: "status"},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return &tablestore.Snapshot{
		Table: t,
		Rows: []*tablestore.Row{
			{ID: 1, Columns: t.ColumnNames(), Values: []any{"Dune", "finished"}},
			{ID: 3, Columns: t.ColumnNames(), Values: []any{"Emma", nil}},
		},
	}
}

func newTestRenderer(mode Mode) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewRenderer(&out, &errOut, mode), &out, &errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"JSON", ModeJSON, false},
		{"md", ModeMarkdown, false},
		{"yaml", ModeYAML, false},
		{"csv", ModeCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode(), "buffers are not terminals")

	r, _, _ = newTestRenderer(ModeJSON)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_SnapshotMarkdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown)
	require.NoError(t, r.Snapshot(sampleSnapshot()))

	got := out.String()
	assert.Contains(t, got, "## Reading List (2 rows)")
	assert.Contains(t, got, "| row_id | title | status |")
	assert.Contains(t, got, "| 1 | Dune | finished |")
	assert.Contains(t, got, "| 3 | Emma |  |")
	assert.NotContains(t, got, "\x1b[", "no ANSI escapes off a terminal")
}

func TestRenderer_SnapshotText(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText)
	require.NoError(t, r.Snapshot(sampleSnapshot()))

	got := out.String()
	assert.Contains(t, got, "Reading List (2 rows)")
	assert.Contains(t, got, "Dune")
	assert.Contains(t, got, "┌")
}

func TestRenderer_SnapshotCSV(t *testing.T) {
	r, out, _ := newTestRenderer(ModeCSV)
	require.NoError(t, r.Snapshot(sampleSnapshot()))
	assert.Equal(t, "row_id,title,status\n1,Dune,finished\n3,Emma,\n", out.String())
}

func TestRenderer_SnapshotJSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON)
	require.NoError(t, r.Snapshot(sampleSnapshot()))

	var decoded struct {
		Table struct {
			Identifier string `json:"identifier"`
		} `json:"table"`
		Rows []struct {
			RowID int64          `json:"row_id"`
			Cells map[string]any `json:"cells"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "reading_list", decoded.Table.Identifier)
	require.Len(t, decoded.Rows, 2)
	assert.Equal(t, int64(3), decoded.Rows[1].RowID)
	assert.Nil(t, decoded.Rows[1].Cells["status"])
}

func TestRenderer_SnapshotYAML(t *testing.T) {
	r, out, _ := newTestRenderer(ModeYAML)
	require.NoError(t, r.Snapshot(sampleSnapshot()))

	got := out.String()
	assert.Contains(t, got, "identifier: reading_list")
	assert.Contains(t, got, "row_id: 1")
	assert.Contains(t, got, "title: Dune")
}

func TestRenderer_Tables(t *testing.T) {
	snap := sampleSnapshot()
	other := &tablestore.Table{DisplayName: "Groceries", Identifier: "groceries",
		Columns: []tablestore.Column{{Name: "item", Type: tablestore.TypeText, Identifier: "item"}}}

	r, out, _ := newTestRenderer(ModeMarkdown)
	require.NoError(t, r.Tables([]*tablestore.Table{snap.Table, other}, "groceries"))
	got := out.String()
	assert.Contains(t, got, "## Tables (2)")
	assert.Contains(t, got, "|  | Reading List | reading_list | title (text), status (text) |")
	assert.Contains(t, got, "| * | Groceries | groceries | item (text) |")

	r, out, _ = newTestRenderer(ModeMarkdown)
	require.NoError(t, r.Tables(nil, ""))
	assert.Contains(t, out.String(), "No tables yet")
}

func TestRenderer_Result(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown)

	require.NoError(t, r.Result(&tools.Result{Text: "Added row 4."}))
	assert.Equal(t, "Added row 4.\n", out.String())

	require.NoError(t, r.Result(&tools.Result{Text: "Error: insert_row: column \"x\" does not exist", IsError: true}))
	assert.Equal(t, "Error: insert_row: column \"x\" does not exist\n", errOut.String())
}

func TestSpinner_NonTTY(t *testing.T) {
	r, out, _ := newTestRenderer(ModeAuto)
	s := r.NewSpinner("Listening...")
	s.Success("Heard you")
	s.Stop()
	assert.Equal(t, "Listening...\nHeard you\n", out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Title", FormatHeader(2, "Title"))
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "- **Rows:** 3", FormatKeyValue("Rows", "3"))
}
