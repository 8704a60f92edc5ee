package converter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/gabriel-vasile/mimetype"
)

// HeaderSearchLimit bounds how many leading rows of a worksheet are scanned
// for the header.
const HeaderSearchLimit = 20

// Extensions lists the accepted input extensions.
var Extensions = []string{".csv", ".xlsx", ".json", ".txt"}

// Load parses an upload into a table according to its extension.
func Load(u types.Upload) (*table.Table, error) {
	ext := strings.ToLower(u.Ext)

	switch ext {
	case ".csv":
		return readDelimited(u.Data, ',')
	case ".txt":
		return readDelimited(u.Data, '\t')
	case ".xlsx":
		return readXLSX(u.Data)
	case ".json":
		return readJSON(u.Data)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFileType, ext)
	}
}

// Describe builds the file summary for a loaded table.
func Describe(u types.Upload, t *table.Table) types.Details {
	return types.Details{
		Name:     u.Name,
		Type:     strings.ToUpper(u.Ext),
		SizeKiB:  u.SizeKiB(),
		Rows:     t.Rows(),
		Columns:  t.Cols(),
		MIMEType: mimetype.Detect(u.Data).String(),
	}
}

func readDelimited(data []byte, delim rune) (*table.Table, error) {
	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	if delim == '\t' {
		reader.LazyQuotes = true
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}

	headerRowIdx := findHeaderRow(records)
	if headerRowIdx == -1 {
		return nil, types.ErrEmptyFile
	}

	return table.FromRecords(records[headerRowIdx], records[headerRowIdx+1:])
}

// findHeaderRow returns the first row with a non-empty cell, or -1.
func findHeaderRow(rows [][]string) int {
	searchLimit := len(rows)
	if searchLimit > HeaderSearchLimit {
		searchLimit = HeaderSearchLimit
	}

	for i := 0; i < searchLimit; i++ {
		if !isBlank(rows[i]) {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		if !isBlank(row) {
			out = append(out, row)
		}
	}
	return out
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}

// Serialize writes t in the target format. name is the uploaded file name
// the artifact name is derived from.
func Serialize(t *table.Table, name string, format types.Format) (*types.Artifact, error) {
	var buf bytes.Buffer

	var err error
	switch format {
	case types.FormatCSV:
		err = writeDelimited(&buf, t, ',')
	case types.FormatTXT:
		err = writeDelimited(&buf, t, '\t')
	case types.FormatExcel:
		err = writeXLSX(&buf, t)
	case types.FormatJSON:
		err = writeJSON(&buf, t)
	default:
		err = fmt.Errorf("unknown format %v", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSerializationFailed, err)
	}

	return &types.Artifact{
		FileName: types.OutputName(name, format),
		MIMEType: format.MIMEType(),
		Data:     buf.Bytes(),
	}, nil
}

func writeDelimited(w io.Writer, t *table.Table, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim

	if err := writer.WriteAll(t.Records()); err != nil {
		return err
	}
	return writer.Error()
}
