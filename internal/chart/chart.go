package chart

import (
	"fmt"
	"math"

	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"
)

// DefaultSeries is how many numeric columns are charted when the user has
// not picked any.
const DefaultSeries = 2

// Selection is the chart-ready part of a table.
type Selection struct {
	// Candidates are every numeric column, in table order.
	Candidates []string
	// Columns are the charted columns, in table order.
	Columns []string
	// Data holds the charted columns only; nil when nothing is selected.
	Data *table.Table
}

// Empty reports whether there is nothing to draw.
func (s *Selection) Empty() bool {
	return s == nil || s.Data == nil || len(s.Columns) == 0
}

// Select restricts t to numeric columns for charting. A nil request picks the
// first DefaultSeries numeric columns; an empty request selects nothing.
// Tables without numeric columns return ErrNoNumericColumns.
func Select(t *table.Table, requested []string) (*Selection, error) {
	candidates := t.NumericColumns()
	if len(candidates) == 0 {
		return &Selection{}, fmt.Errorf("chart: %w", types.ErrNoNumericColumns)
	}

	sel := &Selection{Candidates: candidates}

	if requested == nil {
		n := min(DefaultSeries, len(candidates))
		requested = candidates[:n]
	}
	if len(requested) == 0 {
		return sel, nil
	}

	numeric := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		numeric[c] = true
	}
	for _, name := range requested {
		if !numeric[name] {
			return nil, fmt.Errorf("chart column %q: %w", name, types.ErrUnknownColumn)
		}
	}

	data, err := table.SelectColumns(t, requested)
	if err != nil {
		return nil, err
	}
	sel.Data = data
	sel.Columns = data.Names()
	return sel, nil
}

// Series returns the values of one charted column with missing values as NaN.
func (s *Selection) Series(name string) ([]float64, error) {
	if s.Empty() {
		return nil, types.ErrNoColumnsSelected
	}
	return s.Data.Floats(name)
}

// Scale maps values onto bar lengths of at most width cells, relative to the
// largest absolute value. Missing values get length zero.
func Scale(values []float64, width int) []int {
	peak := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			peak = math.Max(peak, math.Abs(v))
		}
	}

	out := make([]int, len(values))
	if peak == 0 || width <= 0 {
		return out
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		out[i] = int(math.Round(math.Abs(v) / peak * float64(width)))
	}
	return out
}
