package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/pipeline"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/charmbracelet/lipgloss"
)

// Bars in the inline chart are at most this many cells long.
const chartBarWidth = 40

// Rows drawn in the inline chart; the PNG export draws every row.
const chartRows = 12

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateLoading:
		return m.viewLoading()
	case stateFile:
		return m.viewFile()
	case stateColumns:
		return m.viewPicker("Select Columns to Keep", "enter: keep checked columns")
	case stateChartColumns:
		return m.viewPicker("Select Columns for Visualization", "enter: chart checked columns")
	case stateEdit:
		return m.viewEdit()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	title := TitleStyle.Render("💿 Datasweeper - Convert & Clean Tabular Files")
	s.WriteString(title)
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Transform files between CSV, Excel, JSON & TXT with built-in cleaning and charts"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")

	if len(m.picked) > 0 {
		s.WriteString(CheckedStyle.Render(fmt.Sprintf("%d file(s) selected:", len(m.picked))))
		s.WriteString("\n")
		for _, p := range m.picked {
			s.WriteString("  • " + filepath.Base(p) + "\n")
		}
	}
	s.WriteString(HelpStyle.Render("enter: add file • tab: start • q: quit"))

	return s.String()
}

func (m Model) viewLoading() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("💿 Loading..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Reading %d file(s)", len(m.picked)))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) viewFile() string {
	sess := m.session()
	if sess == nil {
		return ""
	}

	var s strings.Builder
	s.WriteString(TitleStyle.Render(fmt.Sprintf("📂 %s", sess.Upload.Name)))
	s.WriteString("  ")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("file %d of %d", m.current+1, len(m.batch.Order))))
	s.WriteString("\n")

	if sess.Failed() {
		s.WriteString(ErrorStyle.Render("✗ " + sess.Err.Error()))
		s.WriteString("\n")
		s.WriteString(m.footer("←/→: switch file • q: quit"))
		return s.String()
	}

	s.WriteString(viewDetails(sess.Details))
	s.WriteString("\n\n")
	s.WriteString(SectionStyle.Render("📝 Data Preview"))
	s.WriteString("\n")
	s.WriteString(m.preview.View())
	s.WriteString("\n\n")

	s.WriteString(viewCleaning(sess))
	s.WriteString("\n\n")
	s.WriteString(viewChart(sess))
	s.WriteString("\n")
	s.WriteString(viewFormats(sess))
	s.WriteString("\n")

	if m.status != "" {
		s.WriteString("\n")
		s.WriteString(StatusStyle.Render(m.status))
	} else if n, ok := sess.LastNotice(); ok {
		s.WriteString("\n")
		s.WriteString(noticeStyle(n.Level).Render(n.Text))
	}
	s.WriteString("\n")

	help := "↑/↓: scroll • e: edit cell • n: add row • del: delete row • x: clean • d: dedupe • m: fill missing • s: columns • r: reset • v: chart columns • p: save chart • f: format • enter: convert • ←/→: file • q: quit"
	s.WriteString(m.footer(help))
	return s.String()
}

func (m Model) footer(help string) string {
	var s strings.Builder
	s.WriteString("\n")
	if m.batch != nil {
		s.WriteString(SuccessStyle.Render("All files processed! 🎉"))
		if failed := len(m.batch.Failed()); failed > 0 {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("  (%d could not be read)", failed)))
		}
		s.WriteString("\n")
	}
	s.WriteString(HelpStyle.Render(help))
	return s.String()
}

func viewDetails(d types.Details) string {
	lines := []string{
		fmt.Sprintf("Name: %s", d.Name),
		fmt.Sprintf("Type: %s", d.Type),
		fmt.Sprintf("Size: %s KB", d.SizeKiB),
		fmt.Sprintf("Rows: %d | Columns: %d", d.Rows, d.Columns),
	}
	return DetailStyle.Render(strings.Join(lines, "\n"))
}

func viewCleaning(sess *pipeline.Session) string {
	box := "[ ]"
	if sess.Clean {
		box = "[x]"
	}
	line := fmt.Sprintf("🛠️  Clean data for %s: %s", sess.Upload.Name, box)
	if !sess.Clean {
		return SectionStyle.Render(line)
	}

	applied := "none"
	if len(sess.Applied) > 0 {
		names := make([]string, len(sess.Applied))
		for i, op := range sess.Applied {
			names[i] = string(op)
		}
		applied = strings.Join(names, ", ")
	}
	return SectionStyle.Render(line) + "\n" +
		fmt.Sprintf("Applied: %s\nColumns: %s", applied, strings.Join(sess.Edited.Names(), ", "))
}

// viewChart draws the chart selection as horizontal bars, one group per row.
func viewChart(sess *pipeline.Session) string {
	var s strings.Builder
	s.WriteString(SectionStyle.Render("📊 Data Visualization"))
	s.WriteString("\n")

	sel, err := sess.Chart()
	if err != nil {
		s.WriteString(WarningStyle.Render(fmt.Sprintf("⚠️ No numeric columns found in %s for visualization", sess.Upload.Name)))
		return s.String()
	}
	if sel.Empty() {
		s.WriteString(HelpStyle.Render("No chart columns selected"))
		return s.String()
	}

	series := make([][]float64, len(sel.Columns))
	var all []float64
	for i, name := range sel.Columns {
		values, err := sel.Series(name)
		if err != nil {
			s.WriteString(ErrorStyle.Render(err.Error()))
			return s.String()
		}
		series[i] = values
		all = append(all, values...)
	}
	lengths := chart.Scale(all, chartBarWidth)

	legend := make([]string, len(sel.Columns))
	for i, name := range sel.Columns {
		legend[i] = seriesStyle(i).Render("■ " + name)
	}
	s.WriteString(strings.Join(legend, "  "))
	s.WriteString("\n")

	rows := sel.Data.Rows()
	for r := 0; r < min(rows, chartRows); r++ {
		for i := range series {
			label := ""
			if i == 0 {
				label = fmt.Sprint(r + 1)
			}
			bar := strings.Repeat("█", lengths[i*rows+r])
			value := sel.Data.Text(r, i)
			s.WriteString(fmt.Sprintf("%4s %s %s\n", label, seriesStyle(i).Render(bar), HelpStyle.UnsetMarginTop().Render(value)))
		}
	}
	if rows > chartRows {
		s.WriteString(HelpStyle.UnsetMarginTop().Render(fmt.Sprintf("… %d more rows (p saves the full chart)", rows-chartRows)))
		s.WriteString("\n")
	}
	return s.String()
}

func viewFormats(sess *pipeline.Session) string {
	var parts []string
	for _, f := range types.Formats {
		mark := "( )"
		style := UnselectedStyle
		if f == sess.Format {
			mark = "(•)"
			style = SelectedStyle
		}
		parts = append(parts, style.Render(mark+" "+f.String()))
	}
	return SectionStyle.Render(fmt.Sprintf("🔁 Convert %s to:", sess.Upload.Name)) + "  " + strings.Join(parts, "  ")
}

func (m Model) viewPicker(title, help string) string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🎯 " + title))
	s.WriteString("\n")
	if sess := m.session(); sess != nil {
		s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File: %s", sess.Upload.Name)))
	}
	s.WriteString("\n\n")

	for i, option := range m.options {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}
		checked := " "
		if m.checked[i] {
			checked = "✓"
		}

		line := fmt.Sprintf("%s [%s] %s", cursor, checked, option)
		switch {
		case m.cursor == i:
			line = SelectedStyle.Render(line)
		case m.checked[i]:
			line = CheckedStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("↑/↓: navigate • space: toggle • a: toggle all • " + help + " • esc: cancel"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewEdit() string {
	sess := m.session()
	var s strings.Builder

	s.WriteString(TitleStyle.Render(fmt.Sprintf("✏️  Edit Row %d", m.editRow+1)))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File: %s", sess.Upload.Name)))
	s.WriteString("\n\n")

	for c, name := range sess.Edited.Names() {
		line := fmt.Sprintf("%s (%s): %s", name, sess.Edited.Kind(name), sess.Edited.Text(m.editRow, c))
		if c == m.editCol {
			s.WriteString(SelectedStyle.Render("> " + line))
		} else {
			s.WriteString(UnselectedStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("tab/shift+tab: column • enter: save • esc: cancel • empty clears the cell"))

	return BoxStyle.Render(s.String())
}

func seriesStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#" + chart.Palette[i%len(chart.Palette)]))
}

func noticeStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return ErrorStyle
	case level >= slog.LevelWarn:
		return WarningStyle
	default:
		return SuccessStyle
	}
}
