package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
)

// State is the lifecycle position of the runtime.
type State int

const (
	Idle State = iota
	Running
	Suspended
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Modes accepted by the mode primitive.
var Modes = []string{"normal", "search", "filter", "command", "warning", "script_input", "lua_repl"}

// Command is one request issued by a script. Args hold int, string or
// bool values depending on Name.
type Command struct {
	Name string
	Args []any
}

// Int returns argument i as an int, or 0.
func (c Command) Int(i int) int {
	if i < len(c.Args) {
		if n, ok := c.Args[i].(int); ok {
			return n
		}
	}
	return 0
}

// Text returns argument i as a string, or "".
func (c Command) Text(i int) string {
	if i < len(c.Args) {
		if s, ok := c.Args[i].(string); ok {
			return s
		}
	}
	return ""
}

// Suspension describes a script waiting in ask.
type Suspension struct {
	ID     string
	Prompt string
	Script string
}

// AppState is the read-only view of the application exposed to scripts as
// the global table "app".
type AppState struct {
	Mode     string
	Position int
	Width    int
	Height   int
	Records  int
	Search   string
	Filter   string
	Command  string
}

// Records is the record list scripts can read and annotate.
type Records interface {
	Len() int
	At(i int) *record.Record
	SetField(i int, name, value string) bool
}

// Options configure a Runtime.
type Options struct {
	Logger  *slog.Logger
	Regex   query.RegexMatcher
	Records Records
	// Shell runs the argument of exec. Defaults to sh -c.
	Shell []string
}

type suspension struct {
	Suspension
	thread *lua.LState
	cancel context.CancelFunc
	fn     *lua.LFunction
}

// Runtime executes cached scripts one at a time. A script may suspend in
// ask; it then waits until Resume or Cancel. Runtime is not safe for
// concurrent use.
type Runtime struct {
	L       *lua.LState
	cache   *Cache
	logger  *slog.Logger
	regex   query.RegexMatcher
	records Records
	shell   []string

	state    State
	commands []Command
	output   []string

	ctx      context.Context
	script   string
	active   *lua.LState
	nested   int
	askToken *lua.LUserData
	susp     *suspension

	current *record.Record
}

// New returns a runtime that executes scripts from cache.
func New(cache *Cache, opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Shell) == 0 {
		opts.Shell = []string{"sh", "-c"}
	}
	r := &Runtime{
		L:       lua.NewState(),
		cache:   cache,
		logger:  opts.Logger,
		regex:   opts.Regex,
		records: opts.Records,
		shell:   opts.Shell,
		ctx:     context.Background(),
	}
	r.askToken = r.L.NewUserData()
	r.register()
	r.L.SetGlobal("app", r.L.NewTable())
	r.L.SetGlobal("current", r.L.NewTable())
	r.L.SetGlobal("record_processors", r.L.NewTable())
	r.SetContext(AppState{Mode: "normal"}, nil)
	return r
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.Cancel()
	r.L.Close()
}

// Cache returns the script cache the runtime executes from.
func (r *Runtime) Cache() *Cache { return r.cache }

func (r *Runtime) State() State { return r.state }

// SetRecords replaces the record list seen by get_record and
// for_each_record.
func (r *Runtime) SetRecords(records Records) { r.records = records }

// Commands returns the commands issued by the last execute or resume in
// issue order.
func (r *Runtime) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Output returns the lines printed by the last execute or resume.
func (r *Runtime) Output() []string {
	return append([]string(nil), r.output...)
}

// Suspended returns the pending suspension, if any.
func (r *Runtime) Suspended() (Suspension, bool) {
	if r.susp == nil {
		return Suspension{}, false
	}
	return r.susp.Suspension, true
}

// SetContext refreshes the "app" and "current" globals. The host calls it
// before every execute and resume.
func (r *Runtime) SetContext(app AppState, current *record.Record) {
	L := r.L
	t := L.NewTable()
	t.RawSetString("mode", lua.LString(app.Mode))
	t.RawSetString("position", lua.LNumber(app.Position))
	t.RawSetString("width", lua.LNumber(app.Width))
	t.RawSetString("height", lua.LNumber(app.Height))
	t.RawSetString("records", lua.LNumber(app.Records))
	t.RawSetString("search", lua.LString(app.Search))
	t.RawSetString("filter", lua.LString(app.Filter))
	t.RawSetString("command", lua.LString(app.Command))
	L.SetGlobal("app", t)

	r.current = current
	L.SetGlobal("current", r.recordTable(current))
}

func (r *Runtime) recordTable(rec *record.Record) *lua.LTable {
	t := r.L.NewTable()
	if rec == nil {
		t.RawSetString("line", lua.LString(""))
		t.RawSetString("line_number", lua.LNumber(0))
		return t
	}
	for k, v := range rec.Fields {
		t.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("line", lua.LString(rec.Original))
	t.RawSetString("original", lua.LString(rec.Original))
	t.RawSetString("index", lua.LNumber(rec.Index))
	if _, ok := rec.Fields[record.FieldLineNumber]; !ok {
		t.RawSetString("line_number", lua.LNumber(rec.Index+1))
	}
	return t
}

// Execute runs the named script from the start on a fresh coroutine. It
// returns the prompt and true when the script suspends in ask. The command
// registry is cleared first; on error it keeps the commands issued before
// the failure.
func (r *Runtime) Execute(ctx context.Context, name string) (string, bool, error) {
	if r.susp != nil {
		return "", false, &ProtocolError{Op: "execute", Err: ErrBusy}
	}
	if r.cache.NeedsReload(name) {
		if _, err := r.cache.ReloadChanged(); err != nil {
			r.logger.Warn("reload scripts", "error", err)
		}
	}
	proto, ok := r.cache.proto(name)
	if !ok {
		return "", false, fmt.Errorf("execute %s: %w", name, ErrUnknownScript)
	}
	return r.start(ctx, name, proto)
}

// ExecuteString compiles and runs an ad-hoc chunk without caching it.
func (r *Runtime) ExecuteString(ctx context.Context, source string) (string, bool, error) {
	if r.susp != nil {
		return "", false, &ProtocolError{Op: "execute", Err: ErrBusy}
	}
	const name = "command"
	proto, err := compileSource(name, source)
	if err != nil {
		return "", false, err
	}
	return r.start(ctx, name, proto)
}

func (r *Runtime) start(ctx context.Context, name string, proto *lua.FunctionProto) (string, bool, error) {
	r.commands = nil
	r.output = nil
	fn := r.L.NewFunctionFromProto(proto)
	co, cancel := r.L.NewThread()
	return r.run(ctx, name, co, cancel, fn)
}

// Resume continues the suspended script, making input the return value of
// its pending ask.
func (r *Runtime) Resume(ctx context.Context, input string) (string, bool, error) {
	s := r.susp
	if s == nil {
		return "", false, &ProtocolError{Op: "resume", Err: ErrNothingSuspended}
	}
	r.susp = nil
	r.commands = nil
	r.output = nil
	return r.run(ctx, s.Script, s.thread, s.cancel, s.fn, lua.LString(input))
}

// Cancel abandons the suspended script. Commands it already issued are not
// undone. Cancel without a suspension does nothing.
func (r *Runtime) Cancel() {
	if r.susp == nil {
		return
	}
	r.logger.Debug("script cancelled", "script", r.susp.Script, "id", r.susp.ID)
	if r.susp.cancel != nil {
		r.susp.cancel()
	}
	r.susp = nil
	r.state = Idle
}

func (r *Runtime) run(ctx context.Context, name string, co *lua.LState, cancel context.CancelFunc, fn *lua.LFunction, args ...lua.LValue) (string, bool, error) {
	if ctx.Done() != nil {
		co.SetContext(ctx)
	} else if co.Context() != nil {
		co.RemoveContext()
	}
	r.ctx = ctx
	r.script = name
	r.active = co
	r.state = Running

	st, err, values := r.L.Resume(co, fn, args...)

	r.active = nil
	r.ctx = context.Background()

	switch st {
	case lua.ResumeYield:
		if len(values) < 2 || values[0] != r.askToken {
			release(cancel)
			r.state = Failed
			return "", false, &RuntimeError{Script: name, Message: "yield outside ask"}
		}
		prompt := values[1].String()
		r.susp = &suspension{
			Suspension: Suspension{ID: uuid.NewString(), Prompt: prompt, Script: name},
			thread:     co,
			cancel:     cancel,
			fn:         fn,
		}
		r.state = Suspended
		r.logger.Debug("script suspended", "script", name, "id", r.susp.ID, "prompt", prompt)
		return prompt, true, nil
	case lua.ResumeOK:
		release(cancel)
		r.state = Completed
		return "", false, nil
	default:
		rerr := newRuntimeError(name, err, traceback(co))
		release(cancel)
		r.state = Failed
		r.logger.Debug("script failed", "script", name, "error", rerr)
		return "", false, rerr
	}
}

func release(cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
}

// traceback renders whatever frames are left on a failed thread.
func traceback(co *lua.LState) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	var b strings.Builder
	for level := 0; level < 32; level++ {
		dbg, ok := co.GetStack(level)
		if !ok {
			break
		}
		if _, err := co.GetInfo("Sl", dbg, lua.LNil); err != nil {
			break
		}
		if dbg.What == "G" {
			fmt.Fprintf(&b, "\n\t[G]: in function")
			continue
		}
		fmt.Fprintf(&b, "\n\t%s:%d: in %s", dbg.Source, dbg.CurrentLine, dbg.What)
	}
	if b.Len() == 0 {
		return ""
	}
	return "stack traceback:" + b.String()
}

// ProcessRecord passes rec to every function in the record_processors
// table. Returned tables are merged into the record's fields; the value
// "__REMOVE__" deletes a field.
func (r *Runtime) ProcessRecord(rec *record.Record) error {
	procs, ok := r.L.GetGlobal("record_processors").(*lua.LTable)
	if !ok || procs.Len() == 0 {
		return nil
	}
	for i := 1; i <= procs.Len(); i++ {
		fn, ok := procs.RawGetInt(i).(*lua.LFunction)
		if !ok {
			continue
		}
		if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, r.recordTable(rec)); err != nil {
			return newRuntimeError("record_processors", err, "")
		}
		ret := r.L.Get(-1)
		r.L.Pop(1)
		if t, ok := ret.(*lua.LTable); ok {
			applyFields(t, rec.Set)
		}
	}
	return nil
}

func applyFields(t *lua.LTable, set func(name, value string)) {
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || v == lua.LNil {
			return
		}
		set(string(key), v.String())
	})
}

func (r *Runtime) issue(name string, args ...any) {
	r.commands = append(r.commands, Command{Name: name, Args: args})
}
