package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles the watch view renders with.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles builds the default watch palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E6EDF3")).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8B9AAE")).Width(10),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E6EDF3")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8B9AAE")),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")),
	}
}
