package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"
)

// Op names a cleaning operation.
type Op string

const (
	OpRemoveDuplicates Op = "remove_duplicates"
	OpFillMissing      Op = "fill_missing"
	OpSelectColumns    Op = "select_columns"
)

// ParseOp resolves an operation name.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpRemoveDuplicates, OpFillMissing, OpSelectColumns:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Notice is a message shown against one file.
type Notice struct {
	Level slog.Level
	Text  string
}

// Session is the state of one uploaded file. Nothing in it is shared with
// other files of the batch.
type Session struct {
	Upload  types.Upload
	Details types.Details

	// Original is the table as loaded; Edited receives the cleaning
	// operations and edits, projected onto Columns.
	Original *table.Table
	Edited   *table.Table
	// wide is Edited before the column selection.
	wide *table.Table

	Clean   bool
	Applied []Op
	// Columns is the kept column subset; nil keeps every column.
	Columns []string
	// ChartColumns is the charted subset; nil charts the default columns.
	ChartColumns []string
	Format       types.Format

	Notices []Notice
	// Err is set when the file could not be loaded.
	Err error

	logger *slog.Logger
}

// Failed reports whether the file dropped out of the pipeline.
func (s *Session) Failed() bool {
	return s.Err != nil
}

func (s *Session) notify(level slog.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	s.Notices = append(s.Notices, Notice{Level: level, Text: text})
	if s.logger != nil {
		s.logger.Log(context.Background(), level, text)
	}
}

// LastNotice returns the most recent notice, if any.
func (s *Session) LastNotice() (Notice, bool) {
	if len(s.Notices) == 0 {
		return Notice{}, false
	}
	return s.Notices[len(s.Notices)-1], true
}

// unprojected returns the edited table with every column.
func (s *Session) unprojected() *table.Table {
	if s.wide == nil {
		return s.Edited
	}
	return s.wide
}

// store keeps wide as the edited table and re-applies the column selection.
func (s *Session) store(wide *table.Table) error {
	edited := wide
	if s.Columns != nil {
		projected, err := table.SelectColumns(wide, s.Columns)
		if err != nil {
			return err
		}
		edited = projected
	}
	s.wide = wide
	s.Edited = edited
	return nil
}

// RemoveDuplicates drops repeated rows from the edited table. Rows are
// compared on every column, including those outside the column selection.
func (s *Session) RemoveDuplicates() error {
	if s.Failed() {
		return s.Err
	}
	before := s.Edited.Rows()
	if err := s.store(table.Deduplicate(s.unprojected())); err != nil {
		return types.ForFile(s.Upload.Name, err)
	}
	s.Applied = append(s.Applied, OpRemoveDuplicates)
	s.notify(slog.LevelInfo, "Duplicates removed (%d rows dropped)", before-s.Edited.Rows())
	return nil
}

// FillMissing fills numeric gaps with column means. A table without numeric
// columns yields a warning error and is left unchanged.
func (s *Session) FillMissing() error {
	if s.Failed() {
		return s.Err
	}
	filled, err := table.FillMissingNumeric(s.unprojected())
	if err == nil {
		err = s.store(filled)
	}
	if err != nil {
		if types.IsWarning(err) {
			s.notify(slog.LevelWarn, "No numeric columns found to fill missing values")
			return err
		}
		s.notify(slog.LevelError, "Fill missing values failed: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	s.Applied = append(s.Applied, OpFillMissing)
	s.notify(slog.LevelInfo, "Missing values have been filled")
	return nil
}

// SelectColumns keeps only names in the edited table. Any column of the
// loaded table may be chosen, including ones an earlier selection dropped.
// nil keeps every column.
func (s *Session) SelectColumns(names []string) error {
	if s.Failed() {
		return s.Err
	}
	wide := s.unprojected()
	projected, err := table.SelectColumns(wide, names)
	if err != nil {
		s.notify(slog.LevelError, "Column selection failed: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	s.wide = wide
	s.Edited = projected
	s.Columns = nil
	if names != nil {
		s.Columns = projected.Names()
	}
	s.Applied = append(s.Applied, OpSelectColumns)
	s.notify(slog.LevelInfo, "Keeping %d of %d columns", projected.Cols(), s.Original.Cols())

	// chart columns that were dropped no longer apply
	if s.ChartColumns != nil {
		var kept []string
		for _, c := range s.ChartColumns {
			if projected.Has(c) {
				kept = append(kept, c)
			}
		}
		s.ChartColumns = kept
	}
	return nil
}

// SetCell replaces one cell of the edited table. The text must fit the
// column's kind.
func (s *Session) SetCell(row, col int, text string) error {
	if s.Failed() {
		return s.Err
	}
	if col < 0 || col >= s.Edited.Cols() {
		err := fmt.Errorf("column %d outside %d columns: %w", col, s.Edited.Cols(), types.ErrInvalidValue)
		s.notify(slog.LevelError, "Edit rejected: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	name := s.Edited.Names()[col]
	wide := s.unprojected()

	edited, err := table.SetCell(wide, row, wide.Index(name), text)
	if err == nil {
		err = s.store(edited)
	}
	if err != nil {
		s.notify(slog.LevelError, "Edit rejected: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	s.notify(slog.LevelInfo, "Row %d, %s set to %q", row+1, name, text)
	return nil
}

// AppendRow adds an empty row to the edited table.
func (s *Session) AppendRow() error {
	if s.Failed() {
		return s.Err
	}
	edited, err := table.AppendRow(s.unprojected(), nil)
	if err == nil {
		err = s.store(edited)
	}
	if err != nil {
		s.notify(slog.LevelError, "Row not added: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	s.notify(slog.LevelInfo, "Row %d added", s.Edited.Rows())
	return nil
}

// DeleteRow removes one row from the edited table.
func (s *Session) DeleteRow(row int) error {
	if s.Failed() {
		return s.Err
	}
	edited, err := table.DeleteRow(s.unprojected(), row)
	if err == nil {
		err = s.store(edited)
	}
	if err != nil {
		s.notify(slog.LevelError, "Row not deleted: %v", err)
		return types.ForFile(s.Upload.Name, err)
	}
	s.notify(slog.LevelInfo, "Row %d deleted", row+1)
	return nil
}

// Apply runs one operation. columns is only used by OpSelectColumns.
func (s *Session) Apply(op Op, columns []string) error {
	switch op {
	case OpRemoveDuplicates:
		return s.RemoveDuplicates()
	case OpFillMissing:
		return s.FillMissing()
	case OpSelectColumns:
		return s.SelectColumns(columns)
	}
	return fmt.Errorf("unknown operation %q", op)
}

// Reset discards every edit.
func (s *Session) Reset() {
	if s.Failed() {
		return
	}
	s.Edited = s.Original.Copy()
	s.wide = nil
	s.Applied = nil
	s.Columns = nil
	s.ChartColumns = nil
}

// Chart selects the charted columns of the edited table.
func (s *Session) Chart() (*chart.Selection, error) {
	if s.Failed() {
		return nil, s.Err
	}
	sel, err := chart.Select(s.Edited, s.ChartColumns)
	if err != nil && !types.IsWarning(err) {
		return nil, types.ForFile(s.Upload.Name, err)
	}
	return sel, err
}

// Preview returns up to n rows of the edited table.
func (s *Session) Preview(n int) [][]string {
	if s.Failed() {
		return nil
	}
	return s.Edited.Head(n)
}
