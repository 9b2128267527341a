package plot

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	chart "github.com/wcharczuk/go-chart/v2"
)

// Format is an image encoding.
type Format string

// Image formats.
const (
	PNG Format = "png"
	SVG Format = "svg"
)

// FormatFor picks the format matching path's extension, PNG by default.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return SVG
	}
	return PNG
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

const (
	width  = 1000
	height = 600
	// Empty categories are labelled so they still get a bar or slice.
	emptyLabel = "(empty)"
)

// Render draws snap according to p and writes the image to w.
func Render(w io.Writer, snap *tablestore.Snapshot, p *Plan, format Format) error {
	switch p.Kind {
	case Bar:
		return renderBar(w, snap.Rows, p, format)
	case Line:
		return renderLine(w, snap.Rows, p, format)
	case Scatter:
		return renderScatter(w, snap.Rows, p, format)
	case Pie:
		return renderPie(w, snap.Rows, p, format)
	case Histogram:
		return renderHistogram(w, snap.Rows, p, format)
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, p.Kind)
	}
}

// WriteFile renders to path in the format its extension names. An
// existing file is replaced only once the image is complete.
func WriteFile(path string, snap *tablestore.Snapshot, p *Plan) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = Render(f, snap, p, FormatFor(path)); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func renderBar(w io.Writer, rows []*tablestore.Row, p *Plan, format Format) error {
	labels := labelsOf(rows, p.X)
	var bars []chart.Value
	if p.Y != "" && p.numeric(p.Y) {
		ys := numbersOf(rows, p.Y)
		for i, l := range labels {
			bars = append(bars, chart.Value{Label: l, Value: ys[i]})
		}
	} else {
		keys, counts := countLabels(labels)
		for _, k := range keys {
			bars = append(bars, chart.Value{Label: k, Value: counts[k]})
		}
	}
	return barChart(p.Title, bars).Render(format.provider(), w)
}

func renderHistogram(w io.Writer, rows []*tablestore.Row, p *Plan, format Format) error {
	return barChart(p.Title, histogram(numbersOf(rows, p.X))).Render(format.provider(), w)
}

func barChart(title string, bars []chart.Value) chart.BarChart {
	return chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      width,
		Height:     height,
		BarWidth:   barWidth(len(bars)),
		YAxis:      chart.YAxis{Range: paddedRange(valuesOf(bars), true)},
		Bars:       bars,
	}
}

func renderLine(w io.Writer, rows []*tablestore.Row, p *Plan, format Format) error {
	xs := make([]float64, len(rows))
	ticks := make([]chart.Tick, len(rows))
	labels := labelsOf(rows, p.X)
	for i := range rows {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: labels[i]}
	}

	yName := "Value"
	ys := xs
	if p.Y != "" {
		yName = titleCase(p.Y)
		ys = numbersOf(rows, p.Y)
	}

	graph := chart.Chart{
		Title:  p.Title,
		Width:  width,
		Height: height,
		XAxis:  chart.XAxis{Name: titleCase(p.X), Ticks: ticks, Range: paddedRange(xs, false)},
		YAxis:  chart.YAxis{Name: yName, Range: paddedRange(ys, false)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yName,
				Style:   chart.Style{StrokeWidth: 2, DotWidth: 4},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(format.provider(), w)
}

func renderScatter(w io.Writer, rows []*tablestore.Row, p *Plan, format Format) error {
	xs := numbersOf(rows, p.X)
	ys := numbersOf(rows, p.Y)

	graph := chart.Chart{
		Title:  p.Title,
		Width:  width,
		Height: height,
		XAxis:  chart.XAxis{Name: titleCase(p.X), Range: paddedRange(xs, false)},
		YAxis:  chart.YAxis{Name: titleCase(p.Y), Range: paddedRange(ys, false)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    titleCase(p.Y),
				Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 6},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(format.provider(), w)
}

func renderPie(w io.Writer, rows []*tablestore.Row, p *Plan, format Format) error {
	labels := labelsOf(rows, p.X)
	keys, sums := countLabels(labels)
	if p.Y != "" && p.numeric(p.Y) {
		// Sum y per category instead of counting rows.
		ys := numbersOf(rows, p.Y)
		sums = make(map[string]float64, len(keys))
		for i, l := range labels {
			sums[l] += ys[i]
		}
	}

	var total float64
	for _, k := range keys {
		if sums[k] > 0 {
			total += sums[k]
		}
	}
	if total == 0 {
		return fmt.Errorf("%w: pie needs positive values", ErrUnsuitable)
	}

	var slices []chart.Value
	for _, k := range keys {
		if sums[k] <= 0 {
			continue
		}
		slices = append(slices, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", k, 100*sums[k]/total),
			Value: sums[k],
		})
	}

	pie := chart.PieChart{
		Title:  p.Title,
		Width:  width,
		Height: height,
		Values: slices,
	}
	return pie.Render(format.provider(), w)
}

// histogram bins values with Sturges' rule.
func histogram(values []float64) []chart.Value {
	lo, hi := bounds(values)
	bins := int(math.Ceil(math.Log2(float64(len(values))))) + 1
	if hi == lo {
		bins = 1
	}
	step := (hi - lo) / float64(bins)

	counts := make([]float64, bins)
	for _, v := range values {
		i := bins - 1
		if step > 0 {
			i = min(int((v-lo)/step), bins-1)
		}
		counts[i]++
	}

	out := make([]chart.Value, bins)
	for i := range counts {
		from := lo + float64(i)*step
		out[i] = chart.Value{
			Label: fmt.Sprintf("%s-%s", formatNumber(from), formatNumber(from+step)),
			Value: counts[i],
		}
	}
	return out
}

func labelsOf(rows []*tablestore.Row, column string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		v, _ := r.Get(column)
		out[i] = tablestore.FormatValue(v)
		if out[i] == "" {
			out[i] = emptyLabel
		}
	}
	return out
}

// numbersOf reads column as numbers; cells that are not numbers count as 0.
func numbersOf(rows []*tablestore.Row, column string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		v, _ := r.Get(column)
		out[i], _ = parseNumber(v)
	}
	return out
}

// countLabels counts labels, returning the distinct ones in first-seen order.
func countLabels(labels []string) ([]string, map[string]float64) {
	var keys []string
	counts := make(map[string]float64)
	for _, l := range labels {
		if _, ok := counts[l]; !ok {
			keys = append(keys, l)
		}
		counts[l]++
	}
	return keys, counts
}

func valuesOf(vs []chart.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Value
	}
	return out
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// paddedRange spans values, widened so it is never empty. Bar ranges
// always include zero.
func paddedRange(values []float64, fromZero bool) *chart.ContinuousRange {
	lo, hi := bounds(values)
	if fromZero {
		lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func barWidth(n int) int {
	return max(4, min(60, (width-100)/max(n, 1)-10))
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}
