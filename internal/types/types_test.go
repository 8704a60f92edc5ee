package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"csv", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"Excel", FormatExcel, false},
		{".xlsx", FormatExcel, false},
		{"json", FormatJSON, false},
		{"TXT", FormatTXT, false},
		{"parquet", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		format   Format
		expected string
	}{
		{"csv to json", "sales.csv", FormatJSON, "sales.json"},
		{"upper case extension", "SALES.CSV", FormatExcel, "SALES.xlsx"},
		{"dotted name", "q1.report.txt", FormatCSV, "q1.report.csv"},
		{"extension inside name", "a.csv.backup.csv", FormatTXT, "a.csv.backup.txt"},
		{"no extension", "data", FormatJSON, "data.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OutputName(tt.input, tt.format))
		})
	}
}

func TestFormatMIMEType(t *testing.T) {
	assert.Equal(t, "text/csv", FormatCSV.MIMEType())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatExcel.MIMEType())
	assert.Equal(t, "application/json", FormatJSON.MIMEType())
	assert.Equal(t, "text/plain", FormatTXT.MIMEType())
	assert.Equal(t, FormatCSV, FormatTXT.Next())
}

func TestUploadSizeKiB(t *testing.T) {
	u := NewUpload("1", "Data.CSV", make([]byte, 1536))
	assert.Equal(t, ".csv", u.Ext)
	assert.Equal(t, "1.50", u.SizeKiB())
}

func TestFileError(t *testing.T) {
	err := ForFile("data.xlsx", fmt.Errorf("open workbook: %w", ErrUnreadableSpreadsheet))

	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "data.xlsx", fe.File)
	assert.Equal(t, CodeUnreadableSpreadsheet, fe.Code())
	assert.True(t, errors.Is(err, ErrUnreadableSpreadsheet))

	// Wrapping twice keeps the original file.
	again := ForFile("other.csv", err)
	require.True(t, errors.As(again, &fe))
	assert.Equal(t, "data.xlsx", fe.File)

	assert.Nil(t, ForFile("x", nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.True(t, IsWarning(fmt.Errorf("fill: %w", ErrNoNumericColumns)))
	assert.False(t, IsWarning(ErrUnknownColumn))
}
