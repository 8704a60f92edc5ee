package ui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF8C42")).
			MarginTop(1)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8C42")).
			Bold(true)

	DetailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			PaddingLeft(2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8C42")).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	CheckedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB84D")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD93D"))

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB84D")).
			Underline(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB84D")).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF8C42")).
			Padding(1, 2)
)
