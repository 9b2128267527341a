// Package plot draws charts of table snapshots.
//
// A Plan decides what to draw. Every option may be left empty, in which
// case the chart type and axes are picked from the table's shape: columns
// holding at least one number are numeric, the rest categorical.
package plot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is a chart type.
type Kind string

// Chart types.
const (
	Bar       Kind = "bar"
	Line      Kind = "line"
	Scatter   Kind = "scatter"
	Pie       Kind = "pie"
	Histogram Kind = "histogram"
)

// Kinds lists every supported chart type.
var Kinds = []Kind{Bar, Line, Scatter, Pie, Histogram}

var (
	// ErrNoData is returned for tables without rows or columns.
	ErrNoData = errors.New("no data to plot")
	// ErrUnknownKind is returned for chart types outside Kinds.
	ErrUnknownKind = errors.New("unknown plot type")
	// ErrUnknownColumn is returned when an axis names a missing column.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnsuitable is returned when the chosen columns cannot be drawn as
	// the chosen chart type.
	ErrUnsuitable = errors.New("columns do not suit the plot type")
)

// Options are the caller's choices. Empty fields are filled in by NewPlan.
type Options struct {
	Kind  string
	X     string
	Y     string
	Title string
}

// Plan is a fully resolved chart description.
type Plan struct {
	Kind        Kind
	X           string
	Y           string
	Title       string
	Numeric     []string
	Categorical []string
}

// NewPlan resolves opts against snap.
func NewPlan(snap *tablestore.Snapshot, opts Options) (*Plan, error) {
	if len(snap.Rows) == 0 {
		return nil, fmt.Errorf("%w: '%s' has no rows", ErrNoData, snap.Table.DisplayName)
	}
	if len(snap.Table.Columns) == 0 {
		return nil, fmt.Errorf("%w: '%s' has no columns", ErrNoData, snap.Table.DisplayName)
	}

	p := &Plan{}
	for _, c := range snap.Table.Columns {
		if isNumeric(snap.Rows, c.Name) {
			p.Numeric = append(p.Numeric, c.Name)
		} else {
			p.Categorical = append(p.Categorical, c.Name)
		}
	}

	var err error
	if p.X, err = columnName(snap.Table, opts.X); err != nil {
		return nil, err
	}
	if p.Y, err = columnName(snap.Table, opts.Y); err != nil {
		return nil, err
	}

	p.Kind = Kind(strings.ToLower(strings.TrimSpace(opts.Kind)))
	if p.Kind == "" {
		p.Kind = p.defaultKind()
	}
	if !validKind(p.Kind) {
		return nil, fmt.Errorf("%w %q; supported types: bar, line, scatter, pie, histogram", ErrUnknownKind, opts.Kind)
	}

	if p.X == "" {
		switch {
		case (p.Kind == Scatter || p.Kind == Histogram) && len(p.Numeric) > 0:
			// These plot x as a quantity.
			p.X = p.Numeric[0]
		case len(p.Categorical) > 0:
			p.X = p.Categorical[0]
		default:
			p.X = p.Numeric[0]
		}
	}
	if p.Y == "" && p.Kind != Histogram && p.Kind != Pie {
		p.Y = p.firstNumericExcept(p.X)
	}

	switch p.Kind {
	case Scatter:
		if !p.numeric(p.X) || p.Y == "" || !p.numeric(p.Y) {
			return nil, fmt.Errorf("%w: scatter needs two numeric columns", ErrUnsuitable)
		}
	case Histogram:
		if !p.numeric(p.X) {
			return nil, fmt.Errorf("%w: histogram needs a numeric column, '%s' is not", ErrUnsuitable, p.X)
		}
	case Line:
		if p.Y != "" && !p.numeric(p.Y) {
			return nil, fmt.Errorf("%w: line needs a numeric y column, '%s' is not", ErrUnsuitable, p.Y)
		}
	}

	p.Title = strings.TrimSpace(opts.Title)
	if p.Title == "" {
		p.Title = p.defaultTitle(snap.Table.DisplayName)
	}
	return p, nil
}

func (p *Plan) defaultKind() Kind {
	switch {
	case len(p.Numeric) >= 2:
		return Scatter
	case len(p.Numeric) == 1 && len(p.Categorical) == 0:
		return Histogram
	default:
		// One numeric column against categories, or categories alone
		// (counted).
		return Bar
	}
}

func (p *Plan) firstNumericExcept(x string) string {
	for _, c := range p.Numeric {
		if c != x {
			return c
		}
	}
	if len(p.Numeric) > 0 {
		return p.Numeric[0]
	}
	return ""
}

func (p *Plan) numeric(column string) bool {
	for _, c := range p.Numeric {
		if c == column {
			return true
		}
	}
	return false
}

func (p *Plan) defaultTitle(table string) string {
	title := titleCase(table)
	switch {
	case p.Kind == Histogram:
		title += " - " + titleCase(p.X) + " Distribution"
	case p.Y != "":
		title += " - " + titleCase(p.Y) + " by " + titleCase(p.X)
	}
	return title
}

func validKind(k Kind) bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// columnName resolves ref to the column's display name. An empty ref
// resolves to "".
func columnName(t *tablestore.Table, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	c, ok := t.Column(ref)
	if !ok {
		return "", fmt.Errorf("%w '%s' in table '%s'", ErrUnknownColumn, ref, t.DisplayName)
	}
	return c.Name, nil
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// isNumeric reports whether any cell of column holds a number.
func isNumeric(rows []*tablestore.Row, column string) bool {
	for _, r := range rows {
		v, _ := r.Get(column)
		if _, ok := parseNumber(v); ok {
			return true
		}
	}
	return false
}

// parseNumber reads v as a number. Thousands separators and dollar signs
// in text are ignored.
func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(x))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
