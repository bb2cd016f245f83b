package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-m3d"
)

// Catppuccin Mocha palette
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Green)

	FaintStyle = lipgloss.NewStyle().
			Foreground(Overlay0)
)

// StateStyle colors a handshake state for the status bar
func StateStyle(s m3d.State) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case m3d.StateReady:
		return base.Foreground(Green)
	case m3d.StateFailed:
		return base.Foreground(Red)
	case m3d.StateSwitching:
		return base.Foreground(Peach)
	default:
		return base.Foreground(Yellow)
	}
}
