package state

import (
	"regexp"
	"sync"
	"testing"

	"github.com/five82/logsift/internal/record"
	"github.com/five82/logsift/internal/script"
)

type stdRegex struct{}

func (stdRegex) Matches(pattern, text string) bool {
	re, err := regexp.Compile(pattern)
	return err == nil && re.MatchString(text)
}

func storeOf(lines ...string) *record.Store {
	s := record.NewStore()
	for _, line := range lines {
		s.Add(record.New(line))
	}
	return s
}

func cmd(name string, args ...any) script.Command {
	return script.Command{Name: name, Args: args}
}

func TestApply_Navigation(t *testing.T) {
	nav := storeOf("a", "b", "c", "d", "e")
	s := New()
	s.SetSize(80, 2)
	s.SetRecordCount(nav.Len())

	tests := []struct {
		cmds      []script.Command
		wantPos   int
		wantTop   int
		wantLeft  int
		wantQuit  bool
		wantMode  Mode
		wantDetai bool
	}{
		{cmds: []script.Command{cmd(script.CmdVMove, 1)}, wantPos: 1, wantTop: 0, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdVMove, 2)}, wantPos: 3, wantTop: 2, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdVMove, 100)}, wantPos: 4, wantTop: 3, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdVGoto, -5)}, wantPos: 0, wantTop: 0, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdMoveBottom)}, wantPos: 4, wantTop: 3, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdMoveTop), cmd(script.CmdHMove, 3)}, wantPos: 0, wantLeft: 3, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdHMove, -10)}, wantPos: 0, wantMode: ModeNormal},
		{cmds: []script.Command{cmd(script.CmdMode, "search"), cmd(script.CmdToggleDetails)}, wantMode: ModeSearch, wantDetai: true},
		{cmds: []script.Command{cmd(script.CmdQuit)}, wantMode: ModeSearch, wantDetai: true, wantQuit: true},
	}
	for i, tt := range tests {
		s.Apply(tt.cmds, nav, stdRegex{})
		snap := s.Snapshot()
		if snap.Position != tt.wantPos || snap.ScrollTop != tt.wantTop || snap.ScrollLeft != tt.wantLeft {
			t.Fatalf("step %d: position/top/left = %d/%d/%d, want %d/%d/%d",
				i, snap.Position, snap.ScrollTop, snap.ScrollLeft, tt.wantPos, tt.wantTop, tt.wantLeft)
		}
		if snap.Mode != tt.wantMode || snap.ShowDetails != tt.wantDetai || snap.Quit != tt.wantQuit {
			t.Fatalf("step %d: mode/details/quit = %s/%v/%v", i, snap.Mode, snap.ShowDetails, snap.Quit)
		}
	}
}

func TestApply_SearchWraps(t *testing.T) {
	nav := storeOf("error one", "ok", "error two", "ok")
	s := New()
	s.SetRecordCount(nav.Len())

	s.Apply([]script.Command{cmd(script.CmdSearch, "error"), cmd(script.CmdSearchNext)}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 2 {
		t.Fatalf("after search_next Position = %d, want 2", got)
	}
	s.Apply([]script.Command{cmd(script.CmdSearchNext)}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 0 {
		t.Fatalf("after wrapping search_next Position = %d, want 0", got)
	}
	s.Apply([]script.Command{cmd(script.CmdSearchPrev)}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 2 {
		t.Fatalf("after wrapping search_prev Position = %d, want 2", got)
	}

	s.Apply([]script.Command{cmd(script.CmdSearch, "missing"), cmd(script.CmdSearchNext)}, nav, stdRegex{})
	snap := s.Snapshot()
	if snap.Position != 2 || snap.Warning == "" {
		t.Fatalf("search without match = %d %q, want unchanged position and a warning", snap.Position, snap.Warning)
	}
}

func TestApply_InvalidQueryKeepsPrevious(t *testing.T) {
	nav := storeOf("a")
	s := New()
	s.SetRecordCount(nav.Len())
	if err := s.SetSearch("level = error"); err != nil {
		t.Fatalf("SetSearch error = %v", err)
	}
	fx := s.Apply([]script.Command{cmd(script.CmdSearch, "\"x\" 1"), cmd(script.CmdFilter, "a &&& b")}, nav, stdRegex{})
	snap := s.Snapshot()
	if snap.Search != "level = error" {
		t.Fatalf("Search = %q, want previous query kept", snap.Search)
	}
	if fx.Filter || fx.FilterErr == nil {
		t.Fatalf("Effects = %+v, want filter error", fx)
	}
	if snap.Warning == "" {
		t.Fatalf("Warning empty after invalid query")
	}
}

func TestApply_FilterAndEffects(t *testing.T) {
	nav := storeOf("a", "b")
	s := New()
	s.SetRecordCount(nav.Len())
	fx := s.Apply([]script.Command{
		cmd(script.CmdFilter, "level = error"),
		cmd(script.CmdRefresh),
		cmd(script.CmdClearRecords),
	}, nav, stdRegex{})
	if !fx.Filter || !fx.Refresh || !fx.ClearRecords {
		t.Fatalf("Effects = %+v, want filter, refresh and clear", fx)
	}
	if s.FilterNode() == nil || s.Snapshot().Filter != "level = error" {
		t.Fatalf("filter not stored")
	}

	fx = s.Apply([]script.Command{cmd(script.CmdFilter, "")}, nav, stdRegex{})
	if !fx.Filter || s.FilterNode() != nil || s.Snapshot().Filter != "" {
		t.Fatalf("empty filter did not clear: %+v", fx)
	}
}

func TestApply_Marks(t *testing.T) {
	nav := storeOf("a", "b", "c", "d")
	s := New()
	s.SetRecordCount(nav.Len())

	s.Apply([]script.Command{cmd(script.CmdVGoto, 2), cmd(script.CmdToggleMark, "red")}, nav, stdRegex{})
	if got, _ := nav.At(2).Field(record.FieldMark); got != "red" {
		t.Fatalf("mark = %q, want red", got)
	}
	s.Apply([]script.Command{cmd(script.CmdMoveTop), cmd(script.CmdNextMark)}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 2 {
		t.Fatalf("after move_to_next_mark Position = %d, want 2", got)
	}
	s.Apply([]script.Command{cmd(script.CmdPrevMark)}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 2 {
		t.Fatalf("move_to_prev_mark with one mark Position = %d, want 2", got)
	}
	s.Apply([]script.Command{cmd(script.CmdClearMark)}, nav, stdRegex{})
	if nav.At(2).Marked() {
		t.Fatalf("clear_mark left the mark")
	}
}

func TestApply_EmptyRecords(t *testing.T) {
	nav := storeOf()
	s := New()
	s.Apply([]script.Command{
		cmd(script.CmdMoveBottom),
		cmd(script.CmdToggleMark, "yellow"),
		cmd(script.CmdSearch, "x"),
		cmd(script.CmdSearchNext),
		cmd(script.CmdNextMark),
	}, nav, stdRegex{})
	if got := s.Snapshot().Position; got != 0 {
		t.Fatalf("Position = %d, want 0", got)
	}
}

func TestSnapshot_AppState(t *testing.T) {
	snap := Snapshot{Mode: ModeFilter, Position: 3, Width: 100, Height: 20, Records: 9, Search: "s", Filter: "f", Command: "c"}
	got := snap.AppState()
	want := script.AppState{Mode: "filter", Position: 3, Width: 100, Height: 20, Records: 9, Search: "s", Filter: "f", Command: "c"}
	if got != want {
		t.Fatalf("AppState() = %+v, want %+v", got, want)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.SetRecordCount(n)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
}
