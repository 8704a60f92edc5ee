package ui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/config"
	"github.com/nconklindev/datasweeper/internal/converter"
	"github.com/nconklindev/datasweeper/internal/pipeline"
	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type state int

const (
	stateFilePicker state = iota
	stateLoading
	stateFile
	stateColumns
	stateChartColumns
	stateEdit
)

type Model struct {
	cfg   config.Config
	state state

	filepicker filepicker.Model
	picked     []string

	orch    *pipeline.Orchestrator
	batch   *pipeline.Batch
	current int

	preview btable.Model
	// input, editRow and editCol back the cell editor
	input   textinput.Model
	editRow int
	editCol int
	// options and checked back the column and chart column pickers
	options []string
	checked []bool
	cursor  int
	status  string

	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	resultChan   chan batchLoadedMsg
}

type batchLoadedMsg struct {
	batch *pipeline.Batch
	orch  *pipeline.Orchestrator
}

type progressMsg float64

type waitForProgressMsg struct{}

func InitialModel(cfg config.Config) Model {
	fp := filepicker.New()
	fp.AllowedTypes = converter.Extensions
	fp.CurrentDirectory, _ = os.Getwd()

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C42"))
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB84D"))
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB84D"))
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C42")).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	prog := progress.New(progress.WithGradient("#FF8C42", "#FF9F5A"))

	input := textinput.New()
	input.Prompt = "› "
	input.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C42"))
	input.CharLimit = 256

	return Model{
		cfg:        cfg,
		state:      stateFilePicker,
		filepicker: fp,
		progress:   prog,
		input:      input,
	}
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// room for title, picked files and help text
		height := max(msg.Height-16, 5)
		m.filepicker.SetHeight(height)
		m.progress.Width = max(msg.Width-20, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "tab":
				if len(m.picked) > 0 {
					return m.startLoading()
				}
				return m, nil
			}

		case stateLoading:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil

		case stateFile:
			return m.updateFile(msg)

		case stateColumns, stateChartColumns:
			return m.updatePicker(msg)

		case stateEdit:
			return m.updateEdit(msg)
		}

	case batchLoadedMsg:
		m.batch = msg.batch
		m.orch = msg.orch
		m.current = 0
		m.state = stateFile
		m.refreshPreview()
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateLoading {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			if !slices.Contains(m.picked, path) {
				m.picked = append(m.picked, path)
			}
		}
		return m, cmd
	}

	return m, nil
}

// session returns the file currently shown.
func (m Model) session() *pipeline.Session {
	if m.batch == nil || len(m.batch.Order) == 0 {
		return nil
	}
	return m.batch.Files()[m.current]
}

func (m Model) updateFile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session()
	if s == nil {
		return m, tea.Quit
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "left", "h":
		if m.current > 0 {
			m.current--
			m.status = ""
			m.refreshPreview()
		}
		return m, nil
	case "right", "l":
		if m.current < len(m.batch.Order)-1 {
			m.current++
			m.status = ""
			m.refreshPreview()
		}
		return m, nil
	}

	if s.Failed() {
		return m, nil
	}

	switch msg.String() {
	case "x":
		s.Clean = !s.Clean
		m.status = ""
	case "d", "m", "s":
		if !s.Clean {
			m.status = "Press x to enable cleaning for this file first"
			return m, nil
		}
		var err error
		switch msg.String() {
		case "d":
			err = s.RemoveDuplicates()
		case "m":
			err = s.FillMissing()
		case "s":
			m.openPicker(stateColumns, s.Original.Names(), s.Edited.Names())
			return m, nil
		}
		// the session's notice carries the message
		m.status = ""
		if err != nil && !types.IsWarning(err) {
			m.status = err.Error()
		}
		m.refreshPreview()
	case "r":
		s.Reset()
		m.status = "Edits discarded"
		m.refreshPreview()
	case "v":
		sel, err := s.Chart()
		if err != nil {
			m.status = fmt.Sprintf("No numeric columns found in %s for visualization", s.Upload.Name)
			return m, nil
		}
		m.openPicker(stateChartColumns, sel.Candidates, sel.Columns)
	case "e":
		if s.Edited.Rows() == 0 || s.Edited.Cols() == 0 {
			m.status = "Nothing to edit; press n to add a row"
			return m, nil
		}
		return m.startEdit(m.preview.Cursor(), 0)
	case "n":
		m.status = statusOf(s.AppendRow())
		m.refreshPreview()
		m.preview.SetCursor(min(s.Edited.Rows(), m.cfg.Preview.Rows) - 1)
	case "delete", "backspace":
		if s.Edited.Rows() == 0 {
			return m, nil
		}
		m.status = statusOf(s.DeleteRow(m.preview.Cursor()))
		m.refreshPreview()
	case "f":
		s.Format = s.Format.Next()
	case "enter":
		m.status = m.convert(s)
	case "p":
		m.status = m.saveChart(s)
	default:
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) openPicker(st state, options, selected []string) {
	m.state = st
	m.options = options
	m.checked = make([]bool, len(options))
	for i, o := range options {
		m.checked[i] = slices.Contains(selected, o)
	}
	m.cursor = 0
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q":
		m.state = stateFile
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case " ":
		if len(m.checked) > 0 {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	case "a":
		all := !slices.Contains(m.checked, false)
		for i := range m.checked {
			m.checked[i] = !all
		}
	case "enter":
		chosen := []string{}
		for i, o := range m.options {
			if m.checked[i] {
				chosen = append(chosen, o)
			}
		}

		s := m.session()
		if m.state == stateColumns {
			if err := s.SelectColumns(chosen); err != nil {
				m.status = err.Error()
			} else {
				m.status = ""
			}
		} else {
			s.ChartColumns = chosen
			m.status = ""
		}
		m.state = stateFile
		m.refreshPreview()
	}
	return m, nil
}

// statusOf shows err in the status line; the session's notice reports
// success.
func statusOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// startEdit opens the cell editor on one cell of the preview.
func (m Model) startEdit(row, col int) (tea.Model, tea.Cmd) {
	s := m.session()
	m.state = stateEdit
	m.editRow = row
	m.editCol = col
	m.input.SetValue(s.Edited.Text(row, col))
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session()
	cols := s.Edited.Cols()

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.state = stateFile
		return m, nil
	case "tab":
		return m.startEdit(m.editRow, (m.editCol+1)%cols)
	case "shift+tab":
		return m.startEdit(m.editRow, (m.editCol+cols-1)%cols)
	case "enter":
		m.input.Blur()
		m.status = statusOf(s.SetCell(m.editRow, m.editCol, m.input.Value()))
		m.state = stateFile
		m.refreshPreview()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// convert writes the file's artifact to the output directory.
func (m Model) convert(s *pipeline.Session) string {
	art, err := m.orch.Convert(s, s.Format)
	if err != nil {
		return err.Error()
	}
	path, err := m.writeOutput(art.FileName, art.Data)
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Saved %s (%s)", path, art.MIMEType)
}

// saveChart renders the current chart selection next to the converted files.
func (m Model) saveChart(s *pipeline.Session) string {
	sel, err := s.Chart()
	if err != nil {
		return fmt.Sprintf("No numeric columns found in %s for visualization", s.Upload.Name)
	}
	if sel.Empty() {
		return "No chart columns selected"
	}

	opts := chart.Options{
		Width:    m.cfg.Preview.ChartWidth,
		Height:   m.cfg.Preview.ChartHeight,
		BarWidth: chart.DefaultOptions().BarWidth,
		MaxBars:  m.cfg.Preview.ChartMaxBars,
	}
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, sel, opts); err != nil {
		return err.Error()
	}
	path, err := m.writeOutput(chart.FileName(s.Upload.Name), buf.Bytes())
	if err != nil {
		return err.Error()
	}
	return "Chart saved to " + path
}

func (m Model) writeOutput(name string, data []byte) (string, error) {
	dir := m.cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// refreshPreview rebuilds the preview table from the current file's edited
// table.
func (m *Model) refreshPreview() {
	s := m.session()
	if s == nil || s.Failed() {
		m.preview = btable.New()
		return
	}
	cursor := m.preview.Cursor()
	m.preview = newPreview(s.Edited, m.cfg.Preview.Rows, m.previewHeight())
	if len(m.preview.Rows()) > 0 {
		m.preview.SetCursor(cursor)
	}
}

func (m Model) previewHeight() int {
	if m.height == 0 {
		return 10
	}
	return min(max(m.height/3, 5), m.cfg.Preview.Rows+1)
}

const maxCellWidth = 20

func newPreview(t *table.Table, n, height int) btable.Model {
	names := t.Names()
	head := t.Head(n)

	cols := make([]btable.Column, len(names))
	for i, name := range names {
		width := lipgloss.Width(name)
		for _, row := range head {
			width = max(width, lipgloss.Width(row[i]))
		}
		cols[i] = btable.Column{Title: name, Width: min(width, maxCellWidth)}
	}

	rows := make([]btable.Row, len(head))
	for i, row := range head {
		rows[i] = btable.Row(row)
	}

	tbl := btable.New(
		btable.WithColumns(cols),
		btable.WithRows(rows),
		btable.WithFocused(true),
		btable.WithHeight(height),
	)

	styles := btable.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#6B7280")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#1F2937")).
		Background(lipgloss.Color("#FFB84D"))
	tbl.SetStyles(styles)
	return tbl
}

// startLoading reads the picked files and loads them as one batch in the
// background, reporting progress through progressChan.
func (m Model) startLoading() (Model, tea.Cmd) {
	m.state = stateLoading
	m.progressChan = make(chan float64, len(m.picked))
	m.resultChan = make(chan batchLoadedMsg, 1)

	cmd := tea.Batch(
		func() tea.Msg {
			progressChan := m.progressChan
			resultChan := m.resultChan
			paths := m.picked
			exportEdited := m.cfg.ExportEdited()

			go func() {
				uploads, readFailures := pipeline.ReadFiles(paths)
				orch := pipeline.New(pipeline.WithExportEdited(exportEdited), readFailures)
				batch := orch.Load(context.Background(), uploads, progressChan)

				resultChan <- batchLoadedMsg{batch: batch, orch: orch}

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		waitForProgress(m.progressChan, m.resultChan),
		m.progress.Init(),
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan batchLoadedMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			res, ok := <-resultChan
			if ok {
				return res
			}
			return nil
		}

		return progressMsg(p)
	}
}
