package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Upload is one user-supplied file. It is not modified after it is received.
type Upload struct {
	ID   string
	Name string
	Ext  string // lower-cased, with the leading dot
	Size int64
	Data []byte
}

// NewUpload builds an Upload, taking the extension from the file name.
func NewUpload(id, name string, data []byte) Upload {
	return Upload{
		ID:   id,
		Name: name,
		Ext:  strings.ToLower(filepath.Ext(name)),
		Size: int64(len(data)),
		Data: data,
	}
}

// SizeKiB returns the upload size in KiB rounded to two decimals.
func (u Upload) SizeKiB() string {
	return fmt.Sprintf("%.2f", float64(u.Size)/1024)
}

// Details is the file summary shown after a successful load.
type Details struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	SizeKiB  string `json:"size_kib"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	MIMEType string `json:"mime_type"`
}

// Artifact is the serialized output of a conversion.
type Artifact struct {
	FileName string
	MIMEType string
	Data     []byte
}

// Format is a conversion target.
type Format int

const (
	FormatCSV Format = iota
	FormatExcel
	FormatJSON
	FormatTXT
)

const (
	MIMECSV   = "text/csv"
	MIMEExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEJSON  = "application/json"
	MIMETXT   = "text/plain"
)

// Formats lists the targets in the order they are offered.
var Formats = []Format{FormatCSV, FormatExcel, FormatJSON, FormatTXT}

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "CSV"
	case FormatExcel:
		return "Excel"
	case FormatJSON:
		return "JSON"
	case FormatTXT:
		return "TXT"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the canonical file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatJSON:
		return ".json"
	case FormatTXT:
		return ".txt"
	default:
		return ".csv"
	}
}

// MIMEType returns the fixed MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatExcel:
		return MIMEExcel
	case FormatJSON:
		return MIMEJSON
	case FormatTXT:
		return MIMETXT
	default:
		return MIMECSV
	}
}

// Next cycles to the following format.
func (f Format) Next() Format {
	return Formats[(int(f)+1)%len(Formats)]
}

// ParseFormat resolves a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "json":
		return FormatJSON, nil
	case "txt", "tsv":
		return FormatTXT, nil
	}
	return 0, fmt.Errorf("unknown format %q", s)
}

// OutputName swaps the extension of name for the format's extension.
func OutputName(name string, f Format) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + f.Ext()
}
