package converter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/tidwall/gjson"
)

// readJSON loads an array of flat records. Columns appear in the order their
// keys are first seen; a key absent from a record is a missing cell.
func readJSON(data []byte) (*table.Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", types.ErrMalformedInput)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: expected an array of records", types.ErrMalformedInput)
	}

	var header []string
	index := make(map[string]int)
	var records []map[string]string
	var badRecord error

	doc.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			badRecord = fmt.Errorf("%w: record %d is not an object", types.ErrMalformedInput, len(records))
			return false
		}
		row := make(map[string]string)
		rec.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if _, ok := index[name]; !ok {
				index[name] = len(header)
				header = append(header, name)
			}
			row[name] = cellText(value)
			return true
		})
		records = append(records, row)
		return true
	})
	if badRecord != nil {
		return nil, badRecord
	}
	if len(header) == 0 {
		return nil, types.ErrEmptyFile
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for j, name := range header {
			v, ok := rec[name]
			if !ok {
				v = "NaN"
			}
			row[j] = v
		}
		rows[i] = row
	}

	return table.FromRecords(header, rows)
}

func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return "NaN"
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		// raw keeps 10.0 distinct from 10
		return v.Raw
	case gjson.String:
		return v.Str
	}
	return v.Raw
}

// writeJSON writes one compact object per row with keys in column order.
func writeJSON(w io.Writer, t *table.Table) error {
	bw := bufio.NewWriter(w)
	names := t.Names()

	keys := make([][]byte, len(names))
	for i, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	bw.WriteByte('[')
	for r := 0; r < t.Rows(); r++ {
		if r > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('{')
		for c := range names {
			if c > 0 {
				bw.WriteByte(',')
			}
			bw.Write(keys[c])
			bw.WriteByte(':')
			if err := writeJSONValue(bw, t.Value(r, c)); err != nil {
				return fmt.Errorf("row %d column %q: %w", r, names[c], err)
			}
		}
		bw.WriteByte('}')
	}
	bw.WriteByte(']')

	return bw.Flush()
}

func writeJSONValue(w *bufio.Writer, v any) error {
	switch v := v.(type) {
	case nil:
		_, err := w.WriteString("null")
		return err
	case int:
		_, err := w.WriteString(strconv.Itoa(v))
		return err
	case float64:
		s := table.FormatFloat(v)
		if s == "+Inf" || s == "-Inf" {
			return fmt.Errorf("cannot encode %s as JSON", s)
		}
		_, err := w.WriteString(s)
		return err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
