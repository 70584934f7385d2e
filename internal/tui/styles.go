package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#00AFAF")
	colorRed    = lipgloss.Color("#FF5F5F")
	colorYellow = lipgloss.Color("#FFD75F")
	colorGray   = lipgloss.Color("#808080")
	colorGreen  = lipgloss.Color("#5FD75F")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	countdownStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)
)
