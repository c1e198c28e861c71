package console

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#7B68EE")
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorBorder  = lipgloss.Color("#3A3A5C")
	colorTitle   = lipgloss.Color("#C4B5FD")
)

var (
	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	styleDangerPanel = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(colorError).
				Padding(0, 1)

	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	styleLabel = lipgloss.NewStyle().Foreground(colorMuted).Width(24)
	styleValue = lipgloss.NewStyle().Bold(true)
	styleKey   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleHint  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	styleOK   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
)

// Environment badges.
var (
	styleStaging    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(colorWarning).Padding(0, 1)
	styleProduction = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorError).Padding(0, 1)
)
