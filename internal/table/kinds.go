package table

import (
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindBoolean
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	}
	return "text"
}

// MarshalText lets kinds appear by name in JSON responses.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Layouts recognised as temporal values
var temporalLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func inferKinds(df dataframe.DataFrame) map[string]Kind {
	kinds := make(map[string]Kind, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		switch col.Type() {
		case series.Int, series.Float:
			kinds[name] = KindNumeric
		case series.Bool:
			kinds[name] = KindBoolean
		default:
			if isTemporal(col) {
				kinds[name] = KindTemporal
			} else {
				kinds[name] = KindText
			}
		}
	}
	return kinds
}

// isTemporal checks that every non-missing value parses as a date or time.
func isTemporal(col series.Series) bool {
	seen := 0
	for i := 0; i < col.Len(); i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		if !parsesAsTime(strings.TrimSpace(e.String())) {
			return false
		}
		seen++
	}
	return seen > 0
}

func parsesAsTime(s string) bool {
	for _, layout := range temporalLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
