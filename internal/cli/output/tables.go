package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
)

// TableSummary is the catalog view of one table.
type TableSummary struct {
	Name       string   `json:"name"`
	Identifier string   `json:"identifier"`
	Columns    []string `json:"columns"`
	Active     bool     `json:"active,omitempty"`
}

// Summarize converts catalog entries for display.
func Summarize(tables []*tablestore.Table, active string) []TableSummary {
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		out = append(out, TableSummary{
			Name:       t.DisplayName,
			Identifier: t.Identifier,
			Columns:    cols,
			Active:     t.Identifier == active,
		})
	}
	return out
}

func (r *Renderer) newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	if r.tty {
		tw.SetStyle(table.StyleRounded)
		tw.Style().Color.Header = text.Colors{text.Bold, text.FgHiCyan}
	} else {
		tw.SetStyle(table.StyleLight)
	}
	return tw
}

func (r *Renderer) flush(tw table.Writer) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		tw.RenderMarkdown()
	case ModeCSV:
		tw.RenderCSV()
	default:
		tw.Render()
	}
}

// Snapshot renders the rows of a table.
func (r *Renderer) Snapshot(snap *tablestore.Snapshot) error {
	if ok, err := r.Structured(snap); ok {
		return err
	}

	mode := r.EffectiveMode()
	if mode != ModeCSV {
		title := fmt.Sprintf("%s (%d rows)", snap.Table.DisplayName, len(snap.Rows))
		r.Header(2, title)
	}
	if len(snap.Table.Columns) == 0 {
		r.Muted("(no columns)")
		return nil
	}

	tw := r.newTable()
	header := table.Row{tablestore.RowIDColumn}
	for _, name := range snap.Table.ColumnNames() {
		header = append(header, name)
	}
	tw.AppendHeader(header)

	for _, row := range snap.Rows {
		cells := table.Row{row.ID}
		for _, v := range row.Values {
			cells = append(cells, tablestore.FormatValue(v))
		}
		tw.AppendRow(cells)
	}

	if len(snap.Rows) == 0 && mode == ModeText {
		tw.AppendFooter(table.Row{"", "(empty)"})
	}
	r.flush(tw)
	return nil
}

// Tables renders the catalog, marking the active table.
func (r *Renderer) Tables(tables []*tablestore.Table, active string) error {
	summaries := Summarize(tables, active)
	if ok, err := r.Structured(summaries); ok {
		return err
	}

	if len(summaries) == 0 {
		r.Muted("No tables yet. Create one to get started.")
		return nil
	}

	if r.EffectiveMode() != ModeCSV {
		r.Header(2, fmt.Sprintf("Tables (%d)", len(summaries)))
	}

	tw := r.newTable()
	tw.AppendHeader(table.Row{"", "Name", "Identifier", "Columns"})
	for _, s := range summaries {
		marker := ""
		if s.Active {
			marker = "*"
		}
		tw.AppendRow(table.Row{marker, s.Name, s.Identifier, strings.Join(s.Columns, ", ")})
	}
	r.flush(tw)
	return nil
}

// Result renders the outcome of a tool call: the message, then any table
// or catalog it carries.
func (r *Renderer) Result(res *tools.Result) error {
	if ok, err := r.Structured(res); ok {
		return err
	}

	if res.IsError {
		r.Error(strings.TrimPrefix(res.Text, "Error: "))
		return nil
	}
	r.Success(res.Text)

	switch {
	case res.Snapshot != nil:
		return r.Snapshot(res.Snapshot)
	case res.Tables != nil:
		return r.Tables(res.Tables, res.Active)
	}
	return nil
}
