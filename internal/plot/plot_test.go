package plot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot builds a table with the given columns; each row lists values in
// column order.
func snapshot(name string, columns []string, rows ...[]any) *tablestore.Snapshot {
	t := &tablestore.Table{DisplayName: name}
	for _, c := range columns {
		t.Columns = append(t.Columns, tablestore.Column{Name: c, Identifier: c})
	}
	snap := &tablestore.Snapshot{Table: t}
	for i, r := range rows {
		snap.Rows = append(snap.Rows, &tablestore.Row{ID: int64(i + 1), Columns: columns, Values: r})
	}
	return snap
}

func expenses() *tablestore.Snapshot {
	return snapshot("monthly_expenses", []string{"item", "amount", "category"},
		[]any{"Rent", "$1,200", "home"},
		[]any{"Coffee", 4.5, "food"},
		[]any{"Lunch", int64(12), "food"},
	)
}

func TestNewPlan_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		snap      *tablestore.Snapshot
		wantKind  Kind
		wantX     string
		wantY     string
		wantTitle string
	}{
		{
			name:      "numeric against categories",
			snap:      expenses(),
			wantKind:  Bar,
			wantX:     "item",
			wantY:     "amount",
			wantTitle: "Monthly Expenses - Amount by Item",
		},
		{
			name: "two numeric columns",
			snap: snapshot("Runs", []string{"km", "minutes"},
				[]any{int64(5), int64(27)}, []any{int64(10), int64(58)}),
			wantKind:  Scatter,
			wantX:     "km",
			wantY:     "minutes",
			wantTitle: "Runs - Minutes by Km",
		},
		{
			name:      "single numeric column",
			snap:      snapshot("scores", []string{"score"}, []any{int64(3)}, []any{int64(7)}),
			wantKind:  Histogram,
			wantX:     "score",
			wantTitle: "Scores - Score Distribution",
		},
		{
			name:      "categories only",
			snap:      snapshot("pets", []string{"kind"}, []any{"cat"}, []any{"dog"}, []any{"cat"}),
			wantKind:  Bar,
			wantX:     "kind",
			wantTitle: "Pets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlan(tt.snap, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, p.Kind)
			assert.Equal(t, tt.wantX, p.X)
			assert.Equal(t, tt.wantY, p.Y)
			assert.Equal(t, tt.wantTitle, p.Title)
		})
	}
}

func TestNewPlan_NumericDetection(t *testing.T) {
	p, err := NewPlan(expenses(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"amount"}, p.Numeric)
	assert.Equal(t, []string{"item", "category"}, p.Categorical)
}

func TestNewPlan_Options(t *testing.T) {
	p, err := NewPlan(expenses(), Options{Kind: " PIE ", X: "Category", Y: "AMOUNT", Title: "Spend"})
	require.NoError(t, err)
	assert.Equal(t, Pie, p.Kind)
	assert.Equal(t, "category", p.X)
	assert.Equal(t, "amount", p.Y)
	assert.Equal(t, "Spend", p.Title)

	p, err = NewPlan(expenses(), Options{Kind: "pie"})
	require.NoError(t, err)
	assert.Empty(t, p.Y, "pie counts categories unless y is given")

	p, err = NewPlan(expenses(), Options{Kind: "histogram"})
	require.NoError(t, err)
	assert.Equal(t, "amount", p.X)
}

func TestNewPlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		snap    *tablestore.Snapshot
		opts    Options
		wantErr error
	}{
		{"no rows", snapshot("empty", []string{"a"}), Options{}, ErrNoData},
		{"unknown kind", expenses(), Options{Kind: "radar"}, ErrUnknownKind},
		{"unknown x", expenses(), Options{X: "vendor"}, ErrUnknownColumn},
		{"unknown y", expenses(), Options{Y: "vendor"}, ErrUnknownColumn},
		{"scatter of text", snapshot("pets", []string{"kind"}, []any{"cat"}), Options{Kind: "scatter"}, ErrUnsuitable},
		{"histogram of text", expenses(), Options{Kind: "histogram", X: "item"}, ErrUnsuitable},
		{"line of text", expenses(), Options{Kind: "line", Y: "category"}, ErrUnsuitable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.snap, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRender(t *testing.T) {
	runs := snapshot("runs", []string{"day", "km", "minutes"},
		[]any{"mon", int64(5), int64(27)},
		[]any{"tue", int64(8), int64(44)},
		[]any{"wed", int64(5), int64(26)},
	)

	for _, kind := range Kinds {
		for _, format := range []Format{PNG, SVG} {
			t.Run(string(kind)+"/"+string(format), func(t *testing.T) {
				opts := Options{Kind: string(kind)}
				if kind == Histogram || kind == Scatter {
					opts.X = "km"
				}
				p, err := NewPlan(runs, opts)
				require.NoError(t, err)

				var buf bytes.Buffer
				require.NoError(t, Render(&buf, runs, p, format))
				if format == PNG {
					assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
				} else {
					assert.Contains(t, buf.String(), "<svg")
				}
			})
		}
	}
}

func TestRender_PieWithoutPositiveValues(t *testing.T) {
	snap := snapshot("refunds", []string{"who", "amount"}, []any{"a", int64(-5)}, []any{"b", int64(0)})
	p, err := NewPlan(snap, Options{Kind: "pie", Y: "amount"})
	require.NoError(t, err)
	err = Render(&bytes.Buffer{}, snap, p, PNG)
	assert.ErrorIs(t, err, ErrUnsuitable)
}

func TestHistogram(t *testing.T) {
	bins := histogram([]float64{1, 2, 2, 3, 9})
	require.Len(t, bins, 4) // ceil(log2(5)) + 1
	var total float64
	for _, b := range bins {
		total += b.Value
	}
	assert.Equal(t, float64(5), total)
	assert.Equal(t, "1-3", bins[0].Label)
	assert.Equal(t, float64(3), bins[0].Value)
	assert.Equal(t, float64(1), bins[1].Value)
	assert.Equal(t, float64(1), bins[3].Value)

	single := histogram([]float64{4, 4})
	require.Len(t, single, 1)
	assert.Equal(t, float64(2), single[0].Value)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, SVG, FormatFor("chart.SVG"))
	assert.Equal(t, PNG, FormatFor("chart.png"))
	assert.Equal(t, PNG, FormatFor("chart"))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"$1,200.50", 1200.5, true},
		{" 7 ", 7, true},
		{int64(3), 3, true},
		{2.5, 2.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	snap := expenses()
	p, err := NewPlan(snap, Options{})
	require.NoError(t, err)

	path := filepath.Join(dir, "charts", "spend.svg")
	require.NoError(t, WriteFile(path, snap, p))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	// A failed render leaves the previous image and no temp files.
	p.Kind = "radar"
	require.Error(t, WriteFile(path, snap, p))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
