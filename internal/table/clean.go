package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/montanaflynn/stats"
)

// Deduplicate drops rows that repeat an earlier row across all columns,
// keeping the first occurrence and the order of the rest.
func Deduplicate(t *Table) *Table {
	seen := make(map[string]struct{}, t.Rows())
	keep := make([]int, 0, t.Rows())

	for r := 0; r < t.Rows(); r++ {
		key := rowKey(t, r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, r)
	}

	if len(keep) == t.Rows() {
		return t.Copy()
	}
	return t.derive(t.df.Subset(keep))
}

// rowKey quotes every rendered cell so no cell text can spill into its
// neighbour. A missing cell is a bare marker no quoted value can equal.
func rowKey(t *Table, r int) string {
	var b strings.Builder
	for c := 0; c < t.Cols(); c++ {
		v := t.Value(r, c)
		if v == nil {
			b.WriteByte('-')
			continue
		}
		b.WriteString(strconv.Quote(FormatValue(v)))
	}
	return b.String()
}

// FillMissingNumeric replaces missing entries of every numeric column with
// the mean of that column's present values. Columns without missing entries
// are left as they are. When the table has no numeric column the table is
// returned unchanged together with ErrNoNumericColumns.
func FillMissingNumeric(t *Table) (*Table, error) {
	if len(t.NumericColumns()) == 0 {
		return t.Copy(), fmt.Errorf("fill missing values: %w", types.ErrNoNumericColumns)
	}

	names := t.Names()
	cols := make([]series.Series, len(names))
	for i, name := range names {
		col := t.df.Col(name)
		cols[i] = col
		if t.kinds[name] != KindNumeric {
			continue
		}

		values := col.Float()
		missing := col.IsNaN()
		present := make([]float64, 0, len(values))
		for j, v := range values {
			if !missing[j] {
				present = append(present, v)
			}
		}
		if len(present) == len(values) || len(present) == 0 {
			continue
		}

		mean, err := stats.Mean(present)
		if err != nil {
			return nil, fmt.Errorf("mean of %q: %w", name, err)
		}
		filled := make([]float64, len(values))
		for j, v := range values {
			if missing[j] {
				v = mean
			}
			filled[j] = v
		}
		cols[i] = series.New(filled, series.Float, name)
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("fill missing values: %w", df.Err)
	}
	return t.derive(df), nil
}

// SelectColumns projects the table onto names, keeping the table's own
// column order. A nil slice selects every column.
func SelectColumns(t *Table, names []string) (*Table, error) {
	if names == nil {
		return t.Copy(), nil
	}
	if len(names) == 0 {
		return nil, types.ErrNoColumnsSelected
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.Has(name) {
			return nil, fmt.Errorf("select %q: %w", name, types.ErrUnknownColumn)
		}
		want[name] = true
	}

	ordered := make([]string, 0, len(want))
	for _, name := range t.Names() {
		if want[name] {
			ordered = append(ordered, name)
		}
	}

	df := t.df.Select(ordered)
	if df.Err != nil {
		return nil, fmt.Errorf("select columns: %w", df.Err)
	}
	return t.derive(df), nil
}
