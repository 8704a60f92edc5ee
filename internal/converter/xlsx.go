package converter

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Built-in number formats that render a serial as a date or time.
var dateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

func readXLSX(data []byte) (*table.Table, error) {
	if !isZip(data) {
		return nil, fmt.Errorf("%w: not a zip container", types.ErrUnreadableSpreadsheet)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnreadableSpreadsheet, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: workbook has no worksheets", types.ErrUnreadableSpreadsheet)
	}

	// stored values, not the number-formatted display text
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnreadableSpreadsheet, err)
	}

	headerRowIdx := findHeaderRow(rows)
	if headerRowIdx == -1 {
		return nil, types.ErrEmptyFile
	}

	cells := newCellReader(f, sheetName)
	for r := headerRowIdx + 1; r < len(rows); r++ {
		for c, raw := range rows[r] {
			if raw == "" {
				continue
			}
			v, err := cells.text(c+1, r+1, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrUnreadableSpreadsheet, err)
			}
			rows[r][c] = v
		}
	}

	return table.FromRecords(rows[headerRowIdx], dropBlankRows(rows[headerRowIdx+1:]))
}

// cellReader turns raw stored cell values into the text a table parses.
type cellReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func newCellReader(f *excelize.File, sheet string) *cellReader {
	r := &cellReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}
	return r
}

func (r *cellReader) text(col, row int, raw string) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	typ, err := r.f.GetCellType(r.sheet, cell)
	if err != nil {
		return "", err
	}

	switch typ {
	case excelize.CellTypeBool:
		switch raw {
		case "1":
			return "true", nil
		case "0":
			return "false", nil
		}
		return raw, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return raw, nil
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, nil
	}
	isDate, err := r.dateStyled(cell)
	if err != nil || !isDate {
		return raw, err
	}
	tm, err := excelize.ExcelDateToTime(serial, r.date1904)
	if err != nil {
		return raw, nil
	}
	if tm.Hour() == 0 && tm.Minute() == 0 && tm.Second() == 0 {
		return tm.Format("2006-01-02"), nil
	}
	return tm.Format("2006-01-02 15:04:05"), nil
}

func (r *cellReader) dateStyled(cell string) (bool, error) {
	idx, err := r.f.GetCellStyle(r.sheet, cell)
	if err != nil || idx == 0 {
		return false, err
	}
	if isDate, ok := r.dateStyles[idx]; ok {
		return isDate, nil
	}

	style, err := r.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	isDate := dateNumFmts[style.NumFmt]
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	}
	r.dateStyles[idx] = isDate
	return isDate, nil
}

// isDateFormatCode reports whether a custom format code has date or time
// tokens outside quoted literals and bracketed sections.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, ch := range code {
		switch {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '[':
			bracket = true
		case ch == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(ch)
		}
	}
	plain := strings.ToLower(b.String())
	return strings.ContainsAny(strings.ReplaceAll(plain, "general", ""), "ydh")
}

func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func writeXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)

	for c, name := range t.Names() {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			v := t.Value(r, c)
			if v == nil {
				continue
			}
			if fv, ok := v.(float64); ok && math.IsInf(fv, 0) {
				return fmt.Errorf("cannot store %s in a numeric cell (%s, row %d)", table.FormatFloat(fv), t.Names()[c], r+1)
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
