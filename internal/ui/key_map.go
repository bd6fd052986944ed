package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings of every view. Each view shows only its own subset in the help line.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	review  key.Binding
	confirm key.Binding
	cancel  key.Binding
	again   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		review:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "review import")),
		confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "start import")),
		cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "back to rows")),
		again:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "import again")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings shown in the help line of view.
func (k keyMap) forView(view ViewState) []key.Binding {
	switch view {
	case PreviewView:
		return []key.Binding{k.up, k.down, k.review, k.quit}
	case ConfirmView:
		return []key.Binding{k.confirm, k.cancel}
	case ImportView:
		return []key.Binding{k.quit}
	case ResultView:
		return []key.Binding{k.up, k.down, k.again, k.quit}
	}
	return nil
}
