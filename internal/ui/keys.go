package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Start  key.Binding
	Stop   key.Binding
	Up     key.Binding
	Down   key.Binding
	Bottom key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start assistant"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop assistant"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "latest"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// sync enables the session controls the controller would accept.
func (k *keyMap) sync(ctrl Commander) {
	k.Start.SetEnabled(ctrl.CanStart())
	k.Stop.SetEnabled(ctrl.CanStop())
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Up, k.Down, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop},
		{k.Up, k.Down, k.Bottom},
		{k.Quit},
	}
}
