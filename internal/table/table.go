package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MissingValues are the raw cell texts treated as missing on load.
var MissingValues = []string{"", "NA", "NaN", "null", "<nil>"}

// Table is an ordered set of named, equal-length columns. Column kinds are
// fixed when the table is loaded and carried unchanged through edits.
type Table struct {
	df    dataframe.DataFrame
	kinds map[string]Kind
}

// FromRecords builds a table from a header and data rows. Rows shorter than
// the header are padded with missing cells, longer rows are truncated.
func FromRecords(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, types.ErrEmptyFile
	}

	width := len(header)
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, row := range rows {
		records = append(records, normalizeRow(row, width))
	}

	var df dataframe.DataFrame
	if len(rows) == 0 {
		// gota refuses a header without data; build empty text columns instead
		cols := make([]series.Series, width)
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		df = dataframe.New(cols...)
	} else {
		df = dataframe.LoadRecords(records,
			dataframe.HasHeader(true),
			dataframe.DetectTypes(true),
			dataframe.DefaultType(series.String),
			dataframe.NaNValues(MissingValues),
		)
	}
	if df.Err != nil {
		return nil, fmt.Errorf("build table: %w", df.Err)
	}

	return &Table{df: df, kinds: inferKinds(df)}, nil
}

func normalizeRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func (t *Table) Rows() int { return t.df.Nrow() }

func (t *Table) Cols() int { return t.df.Ncol() }

// Names returns the column names in order.
func (t *Table) Names() []string { return t.df.Names() }

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, n := range t.df.Names() {
		if n == name {
			return i
		}
	}
	return -1
}

// Kind returns the kind assigned to a column at load time.
func (t *Table) Kind(name string) Kind {
	return t.kinds[name]
}

// NumericColumns returns the numeric column names in table order.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, name := range t.df.Names() {
		if t.kinds[name] == KindNumeric {
			out = append(out, name)
		}
	}
	return out
}

// Value returns the typed value of a cell: nil when missing, otherwise an
// int, float64, bool or string.
func (t *Table) Value(row, col int) any {
	e := t.df.Elem(row, col)
	if e.IsNA() {
		return nil
	}
	switch e.Type() {
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Float:
		f := e.Float()
		if math.IsNaN(f) {
			return nil
		}
		return f
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil
		}
		return v
	}
	return e.String()
}

// Text returns the cell rendered the way delimited output writes it.
func (t *Table) Text(row, col int) string {
	return FormatValue(t.Value(row, col))
}

// Row returns the rendered cells of one row.
func (t *Table) Row(row int) []string {
	out := make([]string, t.Cols())
	for c := range out {
		out[c] = t.Text(row, c)
	}
	return out
}

// Records returns the header followed by every rendered row.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.Rows()+1)
	out = append(out, t.Names())
	for r := 0; r < t.Rows(); r++ {
		out = append(out, t.Row(r))
	}
	return out
}

// Head returns up to n rendered rows for previews.
func (t *Table) Head(n int) [][]string {
	if n > t.Rows() || n < 0 {
		n = t.Rows()
	}
	out := make([][]string, n)
	for r := range out {
		out[r] = t.Row(r)
	}
	return out
}

// Floats returns a column as float64 values, NaN where missing.
func (t *Table) Floats(name string) ([]float64, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("column %q: %w", name, types.ErrUnknownColumn)
	}
	out := make([]float64, t.Rows())
	for r := range out {
		switch v := t.Value(r, i).(type) {
		case int:
			out[r] = float64(v)
		case float64:
			out[r] = v
		default:
			out[r] = math.NaN()
		}
	}
	return out, nil
}

// Equal reports whether both tables have the same columns and rendered cells.
func (t *Table) Equal(o *Table) bool {
	a, b := t.Records(), o.Records()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (t *Table) derive(df dataframe.DataFrame) *Table {
	kinds := make(map[string]Kind, df.Ncol())
	for _, name := range df.Names() {
		kinds[name] = t.kinds[name]
	}
	return &Table{df: df, kinds: kinds}
}

// Copy returns an independent copy of the table.
func (t *Table) Copy() *Table {
	return t.derive(t.df.Copy())
}

// FormatValue renders a cell value. Floats always keep a fractional digit so
// they read back as floats.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case float64:
		return FormatFloat(v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return fmt.Sprint(v)
}

// FormatFloat renders f with the shortest exact representation, adding ".0"
// to integral values.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
