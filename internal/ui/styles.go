package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/voxdash/voxctl/internal/dashboard"
)

// Palette shared by the dashboard and the plain formatter.
const (
	colorAccent    = "#00d9ff"
	colorUser      = "#00d9ff"
	colorAssistant = "#00ff00"
	colorSystem    = "#ffa500"
	colorError     = "#e94560"
	colorMuted     = "#555555"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	headingStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#aaaaaa"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(0, 1)

	enabledButton  = lipgloss.NewStyle().Bold(true)
	disabledButton = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")).Strikethrough(true)
)

// messageStyle returns the style of a log entry's type label. Unknown types
// are left unstyled.
func messageStyle(t dashboard.MessageType) lipgloss.Style {
	if !t.Known() {
		return lipgloss.NewStyle()
	}

	switch t {
	case dashboard.MessageUser:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorUser)).Bold(true)
	case dashboard.MessageAssistant:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorAssistant)).Bold(true)
	case dashboard.MessageSystem:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(colorSystem))
	default:
		return lipgloss.NewStyle()
	}
}

// statusDot renders the colored status indicator.
func statusDot(status dashboard.ConnectionStatus) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(status.Color)).Render("●")
}

// sanitize strips escape sequences and control characters from backend text
// so it cannot drive the terminal.
func sanitize(s string) string {
	s = ansi.Strip(s)

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}
