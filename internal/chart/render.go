package chart

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/montanaflynn/stats"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"
)

// MIMEType is the content type of rendered charts.
const MIMEType = "image/png"

// FileName names the chart image of the file called name.
func FileName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_chart.png"
}

// Palette colours one series each, cycling when there are more series.
var Palette = []string{"FF8C42", "4D96FF", "6BCB77", "FFD93D", "C34A36", "845EC2"}

// Options sizes the rendered image.
type Options struct {
	Width    int
	Height   int
	BarWidth int
	// MaxBars caps the bars drawn. Longer tables are drawn as the means of
	// consecutive row ranges.
	MaxBars int
}

// DefaultOptions returns the size used when nothing is configured.
func DefaultOptions() Options {
	return Options{Width: 1024, Height: 512, BarWidth: 14, MaxBars: 500}
}

// RenderPNG draws the selection as a grouped bar chart: one group per row,
// one coloured bar per charted column.
func RenderPNG(w io.Writer, sel *Selection, opts Options) error {
	if sel.Empty() {
		return types.ErrNoColumnsSelected
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = DefaultOptions().BarWidth
	}
	if opts.MaxBars <= 0 {
		opts.MaxBars = DefaultOptions().MaxBars
	}

	series := make([][]float64, len(sel.Columns))
	var finite []float64
	for i, name := range sel.Columns {
		values, err := sel.Series(name)
		if err != nil {
			return err
		}
		series[i] = values
		for _, v := range values {
			if !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}
	}

	rows := sel.Data.Rows()
	if rows == 0 {
		return fmt.Errorf("chart: table has no rows")
	}

	size := BucketSize(rows, len(series), opts.MaxBars)
	groups := (rows + size - 1) / size
	bars := make([]gochart.Value, 0, groups*len(series))
	for start := 0; start < rows; start += size {
		end := min(start+size, rows)
		for i, values := range series {
			color := drawing.ColorFromHex(Palette[i%len(Palette)])
			v := bucketMean(values[start:end])
			label := ""
			if i == 0 {
				label = rangeLabel(start, end)
			}
			bars = append(bars, gochart.Value{
				Value: v,
				Label: label,
				Style: gochart.Style{
					FillColor:   color,
					StrokeColor: color,
					StrokeWidth: 1,
				},
			})
		}
	}

	spacing := opts.BarWidth / 2
	width := max(opts.Width, len(bars)*(opts.BarWidth+spacing)+120)

	bc := gochart.BarChart{
		Title:      strings.Join(sel.Columns, " / "),
		Width:      width,
		Height:     opts.Height,
		BarWidth:   opts.BarWidth,
		BarSpacing: spacing,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: gochart.YAxis{
			Range: valueRange(finite),
		},
		Bars: bars,
	}

	if err := bc.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// BucketSize returns how many consecutive rows share one bar group so that
// rows*perRow bars fit in maxBars.
func BucketSize(rows, perRow, maxBars int) int {
	groups := max(maxBars/max(perRow, 1), 1)
	return max((rows+groups-1)/groups, 1)
}

// bucketMean averages the present values, zero when all are missing.
func bucketMean(values []float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	mean, err := stats.Mean(present)
	if err != nil {
		return 0
	}
	return mean
}

func rangeLabel(start, end int) string {
	if end-start == 1 {
		return strconv.Itoa(start + 1)
	}
	return fmt.Sprintf("%d-%d", start+1, end)
}

// valueRange always includes zero and never collapses to a single value.
func valueRange(values []float64) *gochart.ContinuousRange {
	lo, hi := 0.0, 1.0
	if len(values) > 0 {
		lo = math.Min(0, floats.Min(values))
		hi = math.Max(0, floats.Max(values))
	}
	if hi <= lo {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}
