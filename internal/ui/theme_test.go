package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/logsift/internal/config"
)

func TestPairStyle(t *testing.T) {
	s := pairStyle(config.ColorPair{FG: "white", BG: "red"})
	if got := s.GetForeground(); got != lipgloss.Color("7") {
		t.Fatalf("foreground = %v, want 7", got)
	}
	if got := s.GetBackground(); got != lipgloss.Color("1") {
		t.Fatalf("background = %v, want 1", got)
	}

	empty := pairStyle(config.ColorPair{FG: "cyan"})
	if _, ok := empty.GetBackground().(lipgloss.NoColor); !ok {
		t.Fatalf("background = %v, want terminal default", empty.GetBackground())
	}
}

func TestMarkStyle(t *testing.T) {
	styles := NewStyles(config.Defaults().Colors)

	if got := styles.MarkStyle("white red").GetBackground(); got != lipgloss.Color("1") {
		t.Fatalf("MarkStyle(white red) background = %v, want 1", got)
	}
	if got := styles.MarkStyle("green").GetBackground(); got != lipgloss.Color("2") {
		t.Fatalf("MarkStyle(green) background = %v, want 2", got)
	}
	if got := styles.MarkStyle("not a colour").GetBackground(); got != styles.Mark.GetBackground() {
		t.Fatalf("MarkStyle fallback = %v, want configured mark", got)
	}
}
