package script

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/record"
)

// Command names written to the registry.
const (
	CmdQuit          = "quit"
	CmdWarning       = "warning"
	CmdVMove         = "vmove"
	CmdVGoto         = "vgoto"
	CmdMoveTop       = "move_top"
	CmdMoveBottom    = "move_bottom"
	CmdHMove         = "hmove"
	CmdSearchNext    = "search_next"
	CmdSearchPrev    = "search_prev"
	CmdToggleMark    = "toggle_mark"
	CmdClearMark     = "clear_mark"
	CmdNextMark      = "move_to_next_mark"
	CmdPrevMark      = "move_to_prev_mark"
	CmdMode          = "mode"
	CmdToggleDetails = "toggle_details"
	CmdRefresh       = "refresh_screen"
	CmdClearRecords  = "clear_records"
	CmdSearch        = "search"
	CmdFilter        = "filter"
)

func (r *Runtime) register() {
	simple := []string{
		CmdQuit, CmdMoveTop, CmdMoveBottom, CmdSearchNext, CmdSearchPrev,
		CmdClearMark, CmdNextMark, CmdPrevMark, CmdToggleDetails, CmdRefresh,
		CmdClearRecords,
	}
	for _, name := range simple {
		r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
			r.issue(name)
			return 0
		}))
	}

	for _, name := range []string{CmdVMove, CmdVGoto, CmdHMove} {
		r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
			r.issue(name, L.CheckInt(1))
			return 0
		}))
	}

	for _, name := range []string{CmdWarning, CmdSearch, CmdFilter} {
		r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
			r.issue(name, L.CheckString(1))
			return 0
		}))
	}

	fns := map[string]lua.LGFunction{
		"toggle_mark":     r.toggleMark,
		"mode":            r.mode,
		"exec":            r.exec,
		"ask":             r.ask,
		"print":           r.print,
		"url_encode":      urlEncode,
		"url_decode":      urlDecode,
		"escape_shell":    escapeShell,
		"debug_log":       r.debugLog,
		"get_record":      r.getRecord,
		"get_position":    r.getPosition,
		"for_each_record": r.forEachRecord,
		"matches":         r.matches,
	}
	for name, fn := range fns {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
	r.guardProtected()
}

// guardProtected wraps pcall and xpcall so that ask raises beneath them
// instead of yielding through the protected call.
func (r *Runtime) guardProtected() {
	for _, name := range []string{"pcall", "xpcall"} {
		orig := r.L.GetGlobal(name)
		if orig == lua.LNil {
			continue
		}
		r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
			r.nested++
			defer func() { r.nested-- }()
			top := L.GetTop()
			L.Push(orig)
			for i := 1; i <= top; i++ {
				L.Push(L.Get(i))
			}
			L.Call(top, lua.MultRet)
			return L.GetTop() - top
		}))
	}
}

func (r *Runtime) toggleMark(L *lua.LState) int {
	r.issue(CmdToggleMark, L.OptString(1, record.DefaultMarkColor))
	return 0
}

func (r *Runtime) mode(L *lua.LState) int {
	name := L.CheckString(1)
	if !slices.Contains(Modes, name) {
		L.ArgError(1, fmt.Sprintf("unknown mode %q", name))
		return 0
	}
	r.issue(CmdMode, name)
	return 0
}

// exec runs a shell command to completion and reports whether it exited
// with status 0.
func (r *Runtime) exec(L *lua.LState) int {
	line := L.CheckString(1)
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	argv := append(append([]string(nil), r.shell...), line)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Debug("exec failed", "script", r.script, "command", line, "error", err, "output", strings.TrimSpace(string(out)))
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	return 1
}

// ask suspends the script until the host resumes it with the user's answer.
func (r *Runtime) ask(L *lua.LState) int {
	if L != r.active || r.nested > 0 {
		L.RaiseError("ask can only be called from the top level of a script")
		return 0
	}
	prompt := L.OptString(1, "")
	return L.Yield(r.askToken, lua.LString(prompt))
}

func (r *Runtime) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	line := strings.Join(parts, "\t")
	r.output = append(r.output, line)
	r.logger.Debug("script output", "script", r.script, "line", line)
	return 0
}

func (r *Runtime) debugLog(L *lua.LState) int {
	r.logger.Debug(L.CheckString(1), "script", r.script)
	return 0
}

// getRecord returns the record at a zero-based index, or the current record
// when called without arguments.
func (r *Runtime) getRecord(L *lua.LState) int {
	if L.GetTop() == 0 || L.Get(1) == lua.LNil {
		if r.current == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(r.recordTable(r.current))
		return 1
	}
	i := L.CheckInt(1)
	if r.records == nil || i < 0 || i >= r.records.Len() {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(r.recordTable(r.records.At(i)))
	return 1
}

func (r *Runtime) getPosition(L *lua.LState) int {
	app, _ := L.GetGlobal("app").(*lua.LTable)
	if app == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(app.RawGetString("position"))
	return 1
}

// forEachRecord calls fn for every record. A table returned by fn is merged
// into the record's fields. A non-function argument is logged and ignored.
func (r *Runtime) forEachRecord(L *lua.LState) int {
	fn, ok := L.Get(1).(*lua.LFunction)
	if !ok {
		r.logger.Warn("for_each_record expects a function", "script", r.script, "got", L.Get(1).Type().String())
		return 0
	}
	if r.records == nil {
		return 0
	}
	r.nested++
	defer func() { r.nested-- }()
	for i := 0; i < r.records.Len(); i++ {
		L.Push(fn)
		L.Push(r.recordTable(r.records.At(i)))
		L.Call(1, 1)
		ret := L.Get(-1)
		L.Pop(1)
		if t, ok := ret.(*lua.LTable); ok {
			applyFields(t, func(name, value string) {
				r.records.SetField(i, name, value)
			})
		}
	}
	return 0
}

// matches evaluates a query against the record at index, or the current
// record.
func (r *Runtime) matches(L *lua.LState) int {
	n, err := query.Compile(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	rec := r.current
	if L.GetTop() >= 2 {
		i := L.CheckInt(2)
		rec = nil
		if r.records != nil && i >= 0 && i < r.records.Len() {
			rec = r.records.At(i)
		}
	}
	if rec == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(query.Matches(n, rec, r.regex)))
	return 1
}

func urlEncode(L *lua.LState) int {
	L.Push(lua.LString(percentEncode(L.CheckString(1))))
	return 1
}

func urlDecode(L *lua.LState) int {
	s := L.CheckString(1)
	out, err := url.PathUnescape(s)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

func escapeShell(L *lua.LState) int {
	L.Push(lua.LString(shellQuote(L.CheckString(1))))
	return 1
}

// percentEncode escapes every byte outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
