package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/logsift/internal/config"
	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
	"github.com/five82/logsift/internal/script"
	"github.com/five82/logsift/internal/state"
)

// replHistory bounds the lines kept for the Lua REPL pane.
const replHistory = 500

// Options configures the UI.
type Options struct {
	Context  context.Context
	Settings config.Settings
	Rule     config.Rule
	View     *record.View
	Runtime  *script.Runtime
	Store    *state.Store
	Regex    query.RegexMatcher
	Logger   *slog.Logger

	// Feed runs on its own goroutine once the program starts and delivers
	// record batches from background sources.
	Feed func(deliver func([]record.Event))
	// Keypress is called for every key before it is handled.
	Keypress func()
	// InputTTY reads keys from the terminal device, for when stdin carries
	// records.
	InputTTY bool
}

// RecordsMsg carries a batch of records from background sources.
type RecordsMsg []record.Event

// ruleFilter is a compiled highlight filter from the active rule.
type ruleFilter struct {
	name      string
	node      query.Node
	highlight *lipgloss.Style
	gutter    *lipgloss.Style
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx     context.Context
	view    *record.View
	rt      *script.Runtime
	store   *state.Store
	regex   query.RegexMatcher
	logger  *slog.Logger
	onKey   func()
	columns []config.Column
	filters []ruleFilter

	// UI state
	styles    Styles
	keys      keyMap
	input     textinput.Model
	inputMode state.Mode // mode the input was last prepared for
	width     int
	height    int
	repl      []string
}

// New creates the model. Rule filters that fail to compile are logged and
// skipped.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.CharLimit = 0

	m := &Model{
		ctx:       ctx,
		view:      opts.View,
		rt:        opts.Runtime,
		store:     opts.Store,
		regex:     opts.Regex,
		logger:    logger,
		onKey:     opts.Keypress,
		columns:   opts.Rule.Columns,
		styles:    NewStyles(opts.Settings.Colors),
		keys:      defaultKeyMap(),
		input:     ti,
		inputMode: state.ModeNormal,
	}
	for _, f := range opts.Rule.Filters {
		n, err := query.Compile(f.Expression)
		if err != nil {
			logger.Warn("skipping rule filter", "rule", opts.Rule.Name, "filter", f.Name, "error", err)
			continue
		}
		rf := ruleFilter{name: f.Name, node: n}
		if f.Highlight != (config.ColorPair{}) {
			s := pairStyle(f.Highlight)
			rf.highlight = &s
		}
		if f.Gutter != "" {
			s := pairStyle(config.ColorPair{FG: f.Gutter})
			rf.gutter = &s
		}
		m.filters = append(m.filters, rf)
	}
	m.store.SetRecordCount(m.view.Visible.Len())
	return m
}

// Run starts the program and blocks until the user quits or the context
// ends.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	popts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.InputTTY {
		popts = append(popts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, popts...)
	if opts.Feed != nil {
		go opts.Feed(func(batch []record.Event) { p.Send(RecordsMsg(batch)) })
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.onKey != nil {
			m.onKey()
		}
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case RecordsMsg:
		m.addRecords(msg)
		return m, nil
	}
	return m, nil
}

// handleKey routes a key by mode: bound scripts in normal mode, the prompt
// otherwise.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	snap := m.store.Snapshot()
	switch snap.Mode {
	case state.ModeNormal:
		if snap.Warning != "" {
			m.store.Update(func(s *state.Snapshot) { s.Warning = "" })
		}
		name := BindingScript(msg.String())
		if !m.rt.Cache().Has(name) {
			return nil
		}
		cmd, _ := m.run(func(ctx context.Context) (string, bool, error) {
			return m.rt.Execute(ctx, name)
		})
		return cmd
	case state.ModeWarning:
		m.setMode(state.ModeNormal)
		return nil
	}
	return m.handleInput(msg, snap.Mode)
}

func (m *Model) handleInput(msg tea.KeyMsg, mode state.Mode) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if mode == state.ModeScriptInput {
			m.rt.Cancel()
		}
		m.setMode(state.ModeNormal)
		return nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit(mode, m.input.Value())
	case key.Matches(msg, m.keys.Complete) && mode == state.ModeCommand:
		m.complete()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit acts on the text entered at the prompt.
func (m *Model) submit(mode state.Mode, text string) tea.Cmd {
	switch mode {
	case state.ModeSearch:
		m.setMode(state.ModeNormal)
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		return m.apply([]script.Command{
			{Name: script.CmdSearch, Args: []any{text}},
			{Name: script.CmdSearchNext},
		})

	case state.ModeFilter:
		m.setMode(state.ModeNormal)
		return m.apply([]script.Command{{Name: script.CmdFilter, Args: []any{strings.TrimSpace(text)}}})

	case state.ModeCommand:
		m.setMode(state.ModeNormal)
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		m.store.Update(func(s *state.Snapshot) { s.Command = text })
		cmd, _ := m.run(func(ctx context.Context) (string, bool, error) {
			if m.isScriptName(text) {
				return m.rt.Execute(ctx, text)
			}
			return m.rt.ExecuteString(ctx, text)
		})
		return cmd

	case state.ModeScriptInput:
		cmd, _ := m.run(func(ctx context.Context) (string, bool, error) {
			return m.rt.Resume(ctx, text)
		})
		return cmd

	case state.ModeLuaRepl:
		m.input.SetValue("")
		if strings.TrimSpace(text) == "" {
			return nil
		}
		m.appendRepl("> " + text)
		cmd, err := m.run(func(ctx context.Context) (string, bool, error) {
			return m.rt.ExecuteString(ctx, text)
		})
		m.appendRepl(m.rt.Output()...)
		if err != nil {
			m.appendRepl(err.Error())
			m.store.Update(func(s *state.Snapshot) { s.Warning = "" })
		}
		return cmd
	}
	return nil
}

// run executes or resumes a script with fresh context globals and applies
// the commands it issued, including those issued before a failure.
func (m *Model) run(start func(ctx context.Context) (string, bool, error)) (tea.Cmd, error) {
	snap := m.store.Snapshot()
	visible := m.view.Visible
	m.rt.SetRecords(visible)
	m.rt.SetContext(snap.AppState(), visible.At(snap.Position))

	prompt, suspended, err := start(m.ctx)
	cmd := m.apply(m.rt.Commands())
	switch {
	case suspended:
		m.store.Update(func(s *state.Snapshot) {
			s.Mode = state.ModeScriptInput
			s.Prompt = prompt
			s.Input = ""
		})
		// a second ask keeps the mode but needs a fresh prompt
		m.inputMode = ""
	case m.store.Snapshot().Mode == state.ModeScriptInput:
		m.store.Update(func(s *state.Snapshot) {
			s.Mode = state.ModeNormal
			s.Prompt = ""
		})
	}
	if err != nil {
		m.logger.Warn("script failed", "error", err)
		m.warn(err)
	}
	m.syncInput()
	return cmd, err
}

// apply hands commands to the state store and carries out the effects it
// reports.
func (m *Model) apply(cmds []script.Command) tea.Cmd {
	if len(cmds) == 0 {
		return nil
	}
	fx := m.store.Apply(cmds, m.view.Visible, m.regex)
	var out []tea.Cmd
	if fx.ClearRecords {
		m.view.Clear()
		m.store.SetRecordCount(0)
	}
	if fx.Filter {
		if err := m.view.SetFilter(m.ctx, m.store.FilterNode()); err != nil {
			m.warn(err)
		}
		m.store.SetRecordCount(m.view.Visible.Len())
	}
	if fx.Refresh {
		out = append(out, tea.ClearScreen)
	}
	if m.store.Snapshot().Quit {
		out = append(out, tea.Quit)
	}
	m.resize()
	m.syncInput()
	return tea.Batch(out...)
}

// addRecords runs record processors over a batch and appends it to the
// view.
func (m *Model) addRecords(batch []record.Event) {
	for _, ev := range batch {
		if ev.Err != nil {
			m.logger.Error("record source failed", "error", ev.Err)
			m.warn(ev.Err)
			continue
		}
		if err := m.rt.ProcessRecord(ev.Record); err != nil {
			m.logger.Warn("record processor failed", "error", err)
		}
		m.view.Add(ev.Record)
	}
	m.store.SetRecordCount(m.view.Visible.Len())
}

func (m *Model) isScriptName(text string) bool {
	return !strings.HasPrefix(text, "key:") && m.rt.Cache().Has(text)
}

// complete replaces the command text with the best matching script name.
func (m *Model) complete() {
	matches := m.rt.Cache().Complete(m.input.Value())
	if len(matches) == 0 {
		return
	}
	m.input.SetValue(matches[0])
	m.input.CursorEnd()
	if len(matches) > 1 {
		m.store.Update(func(s *state.Snapshot) { s.Warning = strings.Join(matches, " ") })
	}
}

func (m *Model) warn(err error) {
	m.store.Update(func(s *state.Snapshot) { s.Warning = err.Error() })
}

func (m *Model) setMode(mode state.Mode) {
	m.store.Update(func(s *state.Snapshot) {
		s.Mode = mode
		if mode == state.ModeNormal {
			s.Prompt = ""
			s.Warning = ""
		}
	})
	m.syncInput()
}

// syncInput prepares the prompt when the mode changed since the last call.
func (m *Model) syncInput() {
	snap := m.store.Snapshot()
	if snap.Mode == m.inputMode {
		return
	}
	m.inputMode = snap.Mode
	switch snap.Mode {
	case state.ModeSearch:
		m.focus("/", snap.Search)
	case state.ModeFilter:
		m.focus("|", snap.Filter)
	case state.ModeCommand:
		m.focus(":", "")
	case state.ModeScriptInput:
		m.focus(snap.Prompt+" ", "")
	case state.ModeLuaRepl:
		m.focus("lua> ", "")
	default:
		m.input.Blur()
		m.input.SetValue("")
	}
	m.resize()
}

func (m *Model) focus(prompt, value string) {
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Width = max(m.width-lipgloss.Width(prompt)-1, 1)
	m.input.Focus()
}

func (m *Model) appendRepl(lines ...string) {
	m.repl = append(m.repl, lines...)
	if over := len(m.repl) - replHistory; over > 0 {
		m.repl = m.repl[over:]
	}
}

// resize gives the record list whatever the status line, prompt and pane
// leave free.
func (m *Model) resize() {
	if m.height <= 0 {
		return
	}
	rows := m.height - 2
	m.store.SetSize(m.width, rows-m.paneRows(rows))
}

// paneRows is the height of the details or REPL pane within rows.
func (m *Model) paneRows(rows int) int {
	snap := m.store.Snapshot()
	if !snap.ShowDetails && snap.Mode != state.ModeLuaRepl {
		return 0
	}
	return min(max(rows/3, 3), max(rows-1, 0))
}
