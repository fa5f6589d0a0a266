package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/voxdash/voxctl/internal/dashboard"
)

const (
	wideLayoutWidth = 90
	sidebarWidth    = 34
	headerHeight    = 3
	footerHeight    = 1
	minLogHeight    = 3

	welcomeText = "Welcome! Press s to start the assistant."
	hintText    = `Try saying: "Open Chrome", "Search for Python tutorials", "Take a screenshot"`
)

func renderScreen(m *Model) string {
	header := renderHeader(m)
	sidebar := renderSidebar(m)
	history := renderHistory(m)

	var body string
	if m.wide() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", history)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, sidebar, history)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.help.View(m.keys))
}

func renderHeader(m *Model) string {
	indicator := mutedStyle.Render("○ stream offline")
	if m.view.StreamConnected {
		indicator = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAssistant)).Render("● stream live")
	}

	title := titleStyle.Render("voxctl · AI Voice Assistant")
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(indicator)

	if gap < 1 {
		gap = 1
	}

	subtitle := subtitleStyle.Render(ansi.Truncate("Full system control with voice commands · "+m.apiURL, m.width, "…"))

	return title + strings.Repeat(" ", gap) + indicator + "\n" + subtitle + "\n"
}

func renderSidebar(m *Model) string {
	width := sidebarWidth
	if !m.wide() {
		width = m.width
	}

	// Width covers content and padding; the border is drawn outside it.
	panel := panelStyle.Width(width - panelStyle.GetHorizontalBorderSize())
	inner := width - panelStyle.GetHorizontalFrameSize()

	panels := []string{
		panel.Render(renderStatus(m, inner)),
		panel.Render(renderControls(m)),
		panel.Render(renderSystem(m)),
	}

	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func renderStatus(m *Model, width int) string {
	status := m.view.Status

	label := sanitize(status.Label)
	if label == "" {
		label = dashboard.Idle.Label
	}

	line := statusDot(status) + " " + headingStyle.Render(label)
	switch m.view.Pending {
	case dashboard.CommandStart:
		line += mutedStyle.Render("  (starting…)")
	case dashboard.CommandStop:
		line += mutedStyle.Render("  (stopping…)")
	}

	// The error line is always reserved so the layout does not jump.
	errLine := " "
	if msg := m.visibleError(); msg != "" {
		errLine = errorStyle.Render(ansi.Truncate("✗ "+msg, width, "…"))
	}

	return headingStyle.Render("Status") + "\n" + line + "\n" + errLine
}

func renderControls(m *Model) string {
	button := func(enabled bool, text string) string {
		if enabled {
			return enabledButton.Render(text)
		}

		return disabledButton.Render(text)
	}

	return headingStyle.Render("Controls") + "\n" +
		button(m.keys.Start.Enabled(), "▶ [s] Start Assistant") + "\n" +
		button(m.keys.Stop.Enabled(), "■ [x] Stop Assistant")
}

func renderSystem(m *Model) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render("System Info"))

	for _, g := range dashboard.Gauges {
		fmt.Fprintf(&b, "\n%s %s", labelStyle.Render(fmt.Sprintf("%-17s", g.Label()+":")), m.view.System.Display(g))
	}

	updated := "waiting for first poll"
	if !m.view.SystemUpdatedAt.IsZero() {
		updated = "updated " + humanize.RelTime(m.view.SystemUpdatedAt, m.now(), "ago", "from now")
	}

	b.WriteString("\n" + mutedStyle.Render(updated))

	return b.String()
}

func renderHistory(m *Model) string {
	w, _ := m.logSize()

	heading := headingStyle.Render("Command History")
	if m.view.Evicted > 0 {
		heading += mutedStyle.Render(fmt.Sprintf("  (%d older dropped)", m.view.Evicted))
	}

	content := m.viewport.View()
	if len(m.view.Messages) == 0 {
		content = lipgloss.NewStyle().Width(w).Height(m.viewport.Height).Render(
			welcomeText + "\n" + mutedStyle.Render(hintText),
		)
	}

	return panelStyle.Width(w + panelStyle.GetHorizontalPadding()).Render(heading + "\n" + content)
}

// logSize returns the viewport dimensions for the current window.
func (m *Model) logSize() (int, int) {
	frameW := panelStyle.GetHorizontalFrameSize()
	frameH := panelStyle.GetVerticalFrameSize() + 1 // heading line

	var w, h int

	if m.wide() {
		w = m.width - sidebarWidth - 1 - frameW
		h = m.height - headerHeight - footerHeight - frameH
	} else {
		w = m.width - frameW
		h = m.height - headerHeight - footerHeight - frameH - lipgloss.Height(renderSidebar(m))
	}

	if w < 10 {
		w = 10
	}

	if h < minLogHeight {
		h = minLogHeight
	}

	return w, h
}

// renderLog formats the message log, one entry per line, in arrival order.
func renderLog(messages []dashboard.LogMessage, width int) string {
	lines := make([]string, 0, len(messages))

	for _, msg := range messages {
		line := mutedStyle.Render("["+msg.Clock()+"]") + " " +
			messageStyle(msg.Type).Render(sanitize(string(msg.Type))+":") + " " +
			sanitize(msg.Content)

		if width > 0 {
			line = lipgloss.NewStyle().Width(width).Render(line)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
