package state

import (
	"fmt"
	"sync"

	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
	"github.com/five82/logsift/internal/script"
)

// Mode is the input mode of the UI.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeSearch      Mode = "search"
	ModeFilter      Mode = "filter"
	ModeCommand     Mode = "command"
	ModeWarning     Mode = "warning"
	ModeScriptInput Mode = "script_input"
	ModeLuaRepl     Mode = "lua_repl"
)

// Snapshot is the UI state at a point in time.
type Snapshot struct {
	Mode        Mode
	Position    int // index into the visible records
	ScrollTop   int
	ScrollLeft  int
	Width       int
	Height      int // rows available for records
	Records     int // visible record count
	Search      string
	Filter      string
	Command     string
	Input       string // answer being typed for a script prompt
	Prompt      string
	Warning     string
	ShowDetails bool
	Quit        bool
}

// Navigator is the record list that commands move over.
type Navigator interface {
	Len() int
	At(i int) *record.Record
	SearchForward(n query.Node, re query.RegexMatcher, start int) (int, bool)
	SearchBackward(n query.Node, re query.RegexMatcher, start int) (int, bool)
	NextMarked(from int) (int, bool)
	PrevMarked(from int) (int, bool)
}

// Effects are the parts of a command batch the host has to carry out
// itself.
type Effects struct {
	ClearRecords bool
	Refresh      bool
	// Filter is set when a script changed the filter text.
	Filter       bool
	FilterErr    error
}

// Store coordinates access to the UI state.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	search   query.Node
	filter   query.Node
}

// New returns a store in normal mode.
func New() *Store {
	return &Store{snapshot: Snapshot{Mode: ModeNormal}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// AppState converts the snapshot to the view exposed to scripts.
func (s Snapshot) AppState() script.AppState {
	return script.AppState{
		Mode:     string(s.Mode),
		Position: s.Position,
		Width:    s.Width,
		Height:   s.Height,
		Records:  s.Records,
		Search:   s.Search,
		Filter:   s.Filter,
		Command:  s.Command,
	}
}

// Update runs fn with exclusive access to the state.
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot)
	clamp(&s.snapshot)
}

// SetSize records the terminal size available for records.
func (s *Store) SetSize(width, height int) {
	s.Update(func(snap *Snapshot) {
		snap.Width = width
		snap.Height = max(height, 1)
	})
}

// SetRecordCount updates the visible record count and keeps the cursor in
// range.
func (s *Store) SetRecordCount(n int) {
	s.Update(func(snap *Snapshot) { snap.Records = n })
}

// SetSearch compiles text as the active search. Invalid text leaves the
// previous search in place.
func (s *Store) SetSearch(text string) error {
	n, err := query.Compile(text)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = n
	s.snapshot.Search = text
	return nil
}

// SetFilter compiles text as the active filter and returns it. Invalid text
// leaves the previous filter in place.
func (s *Store) SetFilter(text string) (query.Node, error) {
	n, err := query.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = n
	s.snapshot.Filter = text
	return n, nil
}

// ClearFilter drops the active filter.
func (s *Store) ClearFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = nil
	s.snapshot.Filter = ""
}

// FilterNode returns the compiled filter, or nil.
func (s *Store) FilterNode() query.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Apply translates script commands into state changes. nav is the visible
// record list; marks are toggled on its records directly.
func (s *Store) Apply(cmds []script.Command, nav Navigator, re query.RegexMatcher) Effects {
	var fx Effects
	for _, cmd := range cmds {
		switch cmd.Name {
		case script.CmdSearch:
			if err := s.SetSearch(cmd.Text(0)); err != nil {
				s.warn(err.Error())
			}
			continue
		case script.CmdFilter:
			if cmd.Text(0) == "" {
				s.ClearFilter()
				fx.Filter = true
				continue
			}
			if _, err := s.SetFilter(cmd.Text(0)); err != nil {
				fx.FilterErr = err
				s.warn(err.Error())
				continue
			}
			fx.Filter = true
			continue
		}

		s.mu.Lock()
		s.apply(cmd, nav, re, &fx)
		s.snapshot.Records = nav.Len()
		clamp(&s.snapshot)
		s.mu.Unlock()
	}
	return fx
}

func (s *Store) warn(msg string) {
	s.mu.Lock()
	s.snapshot.Warning = msg
	s.mu.Unlock()
}

// apply handles one command. The caller holds the lock.
func (s *Store) apply(cmd script.Command, nav Navigator, re query.RegexMatcher, fx *Effects) {
	snap := &s.snapshot
	switch cmd.Name {
	case script.CmdQuit:
		snap.Quit = true
	case script.CmdWarning:
		snap.Warning = cmd.Text(0)
	case script.CmdVMove:
		snap.Position += cmd.Int(0)
	case script.CmdVGoto:
		snap.Position = cmd.Int(0)
	case script.CmdMoveTop:
		snap.Position = 0
	case script.CmdMoveBottom:
		snap.Position = nav.Len() - 1
	case script.CmdHMove:
		snap.ScrollLeft = max(snap.ScrollLeft+cmd.Int(0), 0)
	case script.CmdSearchNext:
		s.searchFrom(nav, re, true)
	case script.CmdSearchPrev:
		s.searchFrom(nav, re, false)
	case script.CmdToggleMark:
		if rec := nav.At(snap.Position); rec != nil {
			rec.ToggleMark(cmd.Text(0))
		}
	case script.CmdClearMark:
		if rec := nav.At(snap.Position); rec != nil {
			rec.Unset(record.FieldMark)
		}
	case script.CmdNextMark:
		if i, ok := nav.NextMarked(snap.Position); ok {
			snap.Position = i
		}
	case script.CmdPrevMark:
		if i, ok := nav.PrevMarked(snap.Position); ok {
			snap.Position = i
		}
	case script.CmdMode:
		snap.Mode = Mode(cmd.Text(0))
	case script.CmdToggleDetails:
		snap.ShowDetails = !snap.ShowDetails
	case script.CmdRefresh:
		fx.Refresh = true
	case script.CmdClearRecords:
		fx.ClearRecords = true
		snap.Position = 0
		snap.ScrollTop = 0
	}
}

// searchFrom moves to the next or previous match of the active search,
// wrapping around once.
func (s *Store) searchFrom(nav Navigator, re query.RegexMatcher, forward bool) {
	snap := &s.snapshot
	if s.search == nil || nav.Len() == 0 {
		return
	}
	var (
		i  int
		ok bool
	)
	if forward {
		i, ok = nav.SearchForward(s.search, re, snap.Position+1)
		if !ok {
			i, ok = nav.SearchForward(s.search, re, 0)
		}
	} else {
		if snap.Position > 0 {
			i, ok = nav.SearchBackward(s.search, re, snap.Position-1)
		}
		if !ok {
			i, ok = nav.SearchBackward(s.search, re, nav.Len()-1)
		}
	}
	if !ok {
		snap.Warning = fmt.Sprintf("not found: %s", snap.Search)
		return
	}
	snap.Position = i
}

// clamp keeps the cursor inside the records and the viewport around the
// cursor.
func clamp(snap *Snapshot) {
	if snap.Position >= snap.Records {
		snap.Position = snap.Records - 1
	}
	if snap.Position < 0 {
		snap.Position = 0
	}
	if snap.Height <= 0 {
		snap.ScrollTop = snap.Position
		return
	}
	if snap.Position < snap.ScrollTop {
		snap.ScrollTop = snap.Position
	}
	if snap.Position >= snap.ScrollTop+snap.Height {
		snap.ScrollTop = snap.Position - snap.Height + 1
	}
	if snap.ScrollTop < 0 {
		snap.ScrollTop = 0
	}
}
