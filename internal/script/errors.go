package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

var (
	// ErrNothingSuspended is reported by Resume when no script is waiting
	// for input.
	ErrNothingSuspended = errors.New("no script is waiting for input")

	// ErrBusy is reported by Execute while another script is suspended.
	ErrBusy = errors.New("a script is already waiting for input")

	// ErrUnknownScript is reported when executing a name the cache does not hold.
	ErrUnknownScript = errors.New("unknown script")
)

// CompileError describes a script that failed to parse or compile. Broken
// scripts are never added to the cache.
type CompileError struct {
	Script  string
	Message string
	Line    int // 0 when unknown
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d: %s", e.Script, e.Line, e.Message)
	}
	return fmt.Sprintf("compile %s: %s", e.Script, e.Message)
}

// RuntimeError describes a script that raised an error while running.
// Commands issued before the error stay in the registry.
type RuntimeError struct {
	Script    string
	Message   string
	Line      int
	Traceback string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("run %s:%d: %s", e.Script, e.Line, e.Message)
	}
	return fmt.Sprintf("run %s: %s", e.Script, e.Message)
}

// ProtocolError reports a call made in the wrong runtime state, such as
// resuming with nothing suspended. It is never fatal.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ProtocolError) Unwrap() error { return e.Err }

// lineRE finds the "chunk:line:" prefix gopher-lua puts on error messages.
var lineRE = regexp.MustCompile(`^[^\n]*?:(\d+):\s*`)

func splitLine(msg string) (int, string) {
	m := lineRE.FindStringSubmatchIndex(msg)
	if m == nil {
		return 0, msg
	}
	n, err := strconv.Atoi(msg[m[2]:m[3]])
	if err != nil {
		return 0, msg
	}
	return n, msg[m[1]:]
}

func newCompileError(name string, err error) *CompileError {
	ce := &CompileError{Script: name, Message: err.Error()}

	var perr *parse.Error
	var lerr *lua.CompileError
	switch {
	case errors.As(err, &perr):
		if perr.Pos.Line != parse.EOF {
			ce.Line = perr.Pos.Line
		}
		ce.Message = perr.Message
		if perr.Token != "" {
			ce.Message = fmt.Sprintf("%s near '%s'", perr.Message, perr.Token)
		}
	case errors.As(err, &lerr):
		ce.Line = lerr.Line
		ce.Message = lerr.Message
	default:
		ce.Line, ce.Message = splitLine(ce.Message)
	}
	return ce
}

func newRuntimeError(name string, err error, traceback string) *RuntimeError {
	msg := err.Error()
	var aerr *lua.ApiError
	if errors.As(err, &aerr) {
		if s, ok := aerr.Object.(lua.LString); ok {
			msg = string(s)
		} else if aerr.Object != nil {
			msg = aerr.Object.String()
		}
		if aerr.StackTrace != "" {
			traceback = aerr.StackTrace
		}
	}
	line, msg := splitLine(msg)
	return &RuntimeError{Script: name, Message: msg, Line: line, Traceback: traceback}
}
