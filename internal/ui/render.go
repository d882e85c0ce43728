package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/logsift/internal/config"
	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
	"github.com/five82/logsift/internal/state"
)

const (
	gutterMark = "▌"
	tabWidth   = 4
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	snap := m.store.Snapshot()
	lines := make([]string, 0, m.height)

	visible := m.view.Visible
	for row := 0; row < snap.Height; row++ {
		i := snap.ScrollTop + row
		rec := visible.At(i)
		if rec == nil {
			lines = append(lines, m.styles.Normal.Width(m.width).Render(""))
			continue
		}
		lines = append(lines, m.renderRecord(rec, i == snap.Position, snap.ScrollLeft))
	}
	if rows := m.paneRows(m.height - 2); rows > 0 {
		lines = append(lines, m.renderPane(snap, rows)...)
	}
	lines = append(lines, m.renderStatus(snap), m.renderPrompt(snap))
	return strings.Join(lines, "\n")
}

// renderRecord draws one row: gutter, configured columns, then the original
// line shifted left by the horizontal scroll.
func (m *Model) renderRecord(rec *record.Record, selected bool, left int) string {
	style := m.styles.Normal
	gutter := " "
	for _, f := range m.filters {
		if !query.Matches(f.node, rec, m.regex) {
			continue
		}
		if f.highlight != nil {
			style = *f.highlight
		}
		if f.gutter != nil {
			gutter = f.gutter.Render(gutterMark)
		}
		break
	}
	if mark, ok := rec.Field(record.FieldMark); ok {
		style = m.styles.MarkStyle(mark)
		gutter = style.Render(gutterMark)
	}
	if selected {
		style = m.styles.Highlight
	}

	var b strings.Builder
	for _, col := range m.columns {
		v, _ := rec.Field(col.Name)
		b.WriteString(cell(v, col))
		b.WriteByte(' ')
	}
	b.WriteString(shift(expandTabs(rec.Original), left))

	width := max(m.width-1, 1)
	return gutter + style.Width(width).Render(truncate(b.String(), width))
}

// renderPane draws the REPL history in lua_repl mode and the current
// record's fields otherwise.
func (m *Model) renderPane(snap state.Snapshot, rows int) []string {
	var content []string
	if snap.Mode == state.ModeLuaRepl {
		content = m.repl
		if len(content) > rows {
			content = content[len(content)-rows:]
		}
	} else if rec := m.view.Visible.At(snap.Position); rec != nil {
		for _, k := range slices.Sorted(maps.Keys(rec.Fields)) {
			content = append(content, k+": "+rec.Fields[k])
		}
		if len(content) > rows {
			content = content[:rows]
		}
	}

	out := make([]string, rows)
	for i := range out {
		line := ""
		if i < len(content) {
			line = expandTabs(content[i])
		}
		out[i] = m.styles.Details.Width(m.width).Render(truncate(line, m.width))
	}
	return out
}

func (m *Model) renderStatus(snap state.Snapshot) string {
	pos := 0
	if snap.Records > 0 {
		pos = snap.Position + 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, " %s  %d/%d", snap.Mode, pos, snap.Records)
	if m.view.Filter() != nil {
		fmt.Fprintf(&b, " of %d", m.view.All.Len())
	}
	if snap.Filter != "" {
		b.WriteString("  | " + snap.Filter)
	}
	if snap.Search != "" {
		b.WriteString("  / " + snap.Search)
	}
	if susp, ok := m.rt.Suspended(); ok {
		b.WriteString("  waiting: " + susp.Script)
	}
	return m.styles.Status.Width(m.width).Render(truncate(b.String(), m.width))
}

func (m *Model) renderPrompt(snap state.Snapshot) string {
	if m.input.Focused() {
		return m.input.View()
	}
	if snap.Warning != "" {
		return m.styles.Warning.Width(m.width).Render(truncate(snap.Warning, m.width))
	}
	return ""
}

// cell pads or cuts v to the column width. Columns without a width are
// written as is.
func cell(v string, col config.Column) string {
	if col.Width <= 0 {
		return v
	}
	pos := lipgloss.Left
	switch col.Align {
	case "right":
		pos = lipgloss.Right
	case "center":
		pos = lipgloss.Center
	}
	return lipgloss.NewStyle().Width(col.Width).Align(pos).Render(truncate(v, col.Width))
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// shift drops the first n runes of s.
func shift(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if n >= len(r) {
		return ""
	}
	return string(r[n:])
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
