package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the keys handled by the UI itself. Everything else in normal
// mode is looked up in the configured keybindings.
type keyMap struct {
	// Global
	ForceQuit key.Binding

	// Prompt input
	Submit   key.Binding
	Cancel   key.Binding
	Complete key.Binding
}

// defaultKeyMap returns the built-in bindings.
func defaultKeyMap() keyMap {
	return keyMap{
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "Quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Complete script name"),
		),
	}
}

// BindingScript names the compiled script for a configured key.
func BindingScript(k string) string {
	return "key:" + k
}
