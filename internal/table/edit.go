package table

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// gota's marker for a missing element when building from strings
const naRecord = "NaN"

// SetCell returns a copy of t with one cell replaced by text, parsed as the
// column's kind. Text listed in MissingValues clears the cell.
func SetCell(t *Table, row, col int, text string) (*Table, error) {
	if row < 0 || row >= t.Rows() || col < 0 || col >= t.Cols() {
		return nil, fmt.Errorf("cell (%d, %d) outside %dx%d table: %w", row, col, t.Rows(), t.Cols(), types.ErrInvalidValue)
	}
	cell, err := t.parseCell(col, text)
	if err != nil {
		return nil, err
	}

	cols := t.columnRecords()
	cols[col][row] = cell
	return t.rebuild(cols)
}

// AppendRow returns a copy of t with one row added at the end. Missing
// trailing cells are left empty.
func AppendRow(t *Table, cells []string) (*Table, error) {
	if len(cells) > t.Cols() {
		return nil, fmt.Errorf("row has %d cells, table has %d columns: %w", len(cells), t.Cols(), types.ErrInvalidValue)
	}

	cols := t.columnRecords()
	for c := range cols {
		cell := naRecord
		if c < len(cells) {
			parsed, err := t.parseCell(c, cells[c])
			if err != nil {
				return nil, err
			}
			cell = parsed
		}
		cols[c] = append(cols[c], cell)
	}
	return t.rebuild(cols)
}

// DeleteRow returns a copy of t without the given row.
func DeleteRow(t *Table, row int) (*Table, error) {
	if row < 0 || row >= t.Rows() {
		return nil, fmt.Errorf("row %d outside %d rows: %w", row, t.Rows(), types.ErrInvalidValue)
	}

	cols := t.columnRecords()
	for c := range cols {
		cols[c] = slices.Delete(cols[c], row, row+1)
	}
	return t.rebuild(cols)
}

// parseCell normalizes text for the column at col without changing its kind.
func (t *Table) parseCell(col int, text string) (string, error) {
	name := t.Names()[col]
	trimmed := strings.TrimSpace(text)
	if slices.Contains(MissingValues, trimmed) {
		return naRecord, nil
	}

	switch t.kinds[name] {
	case KindNumeric:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", fmt.Errorf("%q is not a number (column %q): %w", text, name, types.ErrInvalidValue)
		}
		return trimmed, nil
	case KindBoolean:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return "", fmt.Errorf("%q is not true or false (column %q): %w", text, name, types.ErrInvalidValue)
		}
		return strconv.FormatBool(b), nil
	case KindTemporal:
		if !parsesAsTime(trimmed) {
			return "", fmt.Errorf("%q is not a date (column %q): %w", text, name, types.ErrInvalidValue)
		}
		return trimmed, nil
	}
	return text, nil
}

// columnRecords renders every column losslessly, naRecord marking missing
// cells.
func (t *Table) columnRecords() [][]string {
	cols := make([][]string, t.Cols())
	for c := range cols {
		cells := make([]string, t.Rows())
		for r := range cells {
			v := t.Value(r, c)
			if v == nil {
				cells[r] = naRecord
				continue
			}
			cells[r] = FormatValue(v)
		}
		cols[c] = cells
	}
	return cols
}

// rebuild assembles a table with t's names and kinds from column records.
// An integer column that received a fractional value becomes a float column.
func (t *Table) rebuild(cols [][]string) (*Table, error) {
	names := t.Names()
	built := make([]series.Series, len(names))
	for c, name := range names {
		typ := t.df.Col(name).Type()
		if typ == series.Int && !allInts(cols[c]) {
			typ = series.Float
		}
		built[c] = series.New(cols[c], typ, name)
	}

	df := dataframe.New(built...)
	if df.Err != nil {
		return nil, fmt.Errorf("rebuild table: %w", df.Err)
	}
	return t.derive(df), nil
}

func allInts(cells []string) bool {
	for _, cell := range cells {
		if cell == naRecord {
			continue
		}
		if _, err := strconv.Atoi(cell); err != nil {
			return false
		}
	}
	return true
}
