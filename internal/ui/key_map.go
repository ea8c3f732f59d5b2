package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the run monitor.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	pause     key.Binding
	resume    key.Binding
	cancel    key.Binding
	quit      key.Binding
	forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		pause:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		resume:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
		cancel:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "force quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.pause, k.resume, k.cancel, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.pause, k.resume, k.cancel},
		{k.up, k.down},
		{k.quit, k.forceQuit},
	}
}
