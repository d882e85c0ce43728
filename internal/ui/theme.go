package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/logsift/internal/config"
)

// ansiColors maps configuration colour names to the basic ANSI palette so
// the terminal's own scheme decides the exact shade.
var ansiColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
}

// Styles contains pre-built Lipgloss styles for the configured colours.
type Styles struct {
	Normal    lipgloss.Style
	Highlight lipgloss.Style // cursor row
	Mark      lipgloss.Style
	Details   lipgloss.Style
	Warning   lipgloss.Style
	Status    lipgloss.Style
	Prompt    lipgloss.Style
}

// NewStyles builds styles from the colour settings.
func NewStyles(c config.Colors) Styles {
	return Styles{
		Normal:    pairStyle(c.Normal),
		Highlight: pairStyle(c.Highlight),
		Mark:      pairStyle(c.Mark),
		Details:   pairStyle(c.Details),
		Warning:   pairStyle(c.Warning).Bold(true),
		Status:    pairStyle(config.ColorPair{FG: c.Normal.BG, BG: c.Normal.FG}),
		Prompt:    pairStyle(c.Normal).Bold(true),
	}
}

// pairStyle returns a style with the pair's colours. Empty halves keep the
// terminal default.
func pairStyle(p config.ColorPair) lipgloss.Style {
	s := lipgloss.NewStyle()
	if c, ok := ansiColors[p.FG]; ok {
		s = s.Foreground(lipgloss.Color(c))
	}
	if c, ok := ansiColors[p.BG]; ok {
		s = s.Background(lipgloss.Color(c))
	}
	return s
}

// MarkStyle returns the style for a record marked with value, which is a
// colour pair such as "white red" or a single foreground colour. Unknown
// values fall back to the configured mark colour.
func (s Styles) MarkStyle(value string) lipgloss.Style {
	p, err := config.ParseColorPair(value)
	if err != nil {
		return s.Mark
	}
	if p.BG == "" {
		return pairStyle(config.ColorPair{FG: "black", BG: p.FG})
	}
	return pairStyle(p)
}
