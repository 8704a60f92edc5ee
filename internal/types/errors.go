package types

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure a file ran into.
type Code string

const (
	CodeUnsupportedFileType   Code = "UNSUPPORTED_FILE_TYPE"
	CodeUnreadableSpreadsheet Code = "UNREADABLE_SPREADSHEET"
	CodeUnknownColumn         Code = "UNKNOWN_COLUMN"
	CodeNoNumericColumns      Code = "NO_NUMERIC_COLUMNS"
	CodeSerializationFailed   Code = "SERIALIZATION_FAILED"
	CodeEmptyFile             Code = "EMPTY_FILE"
	CodeMalformedInput        Code = "MALFORMED_INPUT"
	CodeNoColumnsSelected     Code = "NO_COLUMNS_SELECTED"
	CodeInvalidValue          Code = "INVALID_VALUE"
	CodeInternal              Code = "INTERNAL"
)

var (
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrUnreadableSpreadsheet = errors.New("unreadable spreadsheet")
	ErrUnknownColumn         = errors.New("unknown column")
	ErrNoNumericColumns      = errors.New("no numeric columns")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrEmptyFile             = errors.New("empty file")
	ErrMalformedInput        = errors.New("malformed input")
	ErrNoColumnsSelected     = errors.New("no columns selected")
	ErrInvalidValue          = errors.New("invalid value")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrUnsupportedFileType, CodeUnsupportedFileType},
	{ErrUnreadableSpreadsheet, CodeUnreadableSpreadsheet},
	{ErrUnknownColumn, CodeUnknownColumn},
	{ErrNoNumericColumns, CodeNoNumericColumns},
	{ErrSerializationFailed, CodeSerializationFailed},
	{ErrEmptyFile, CodeEmptyFile},
	{ErrMalformedInput, CodeMalformedInput},
	{ErrNoColumnsSelected, CodeNoColumnsSelected},
	{ErrInvalidValue, CodeInvalidValue},
}

// FileError scopes a failure to the file that caused it.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Code returns the code of the wrapped sentinel.
func (e *FileError) Code() Code {
	return CodeOf(e.Err)
}

// ForFile wraps err so it is reported against file. A nil err stays nil.
func ForFile(file string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return err
	}
	return &FileError{File: file, Err: err}
}

// CodeOf maps an error onto its Code.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// IsWarning reports whether err should be surfaced as a warning only.
func IsWarning(err error) bool {
	return errors.Is(err, ErrNoNumericColumns)
}
