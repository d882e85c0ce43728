// Package script runs user Lua scripts against the log viewer.
//
// # Overview
//
// Scripts are compiled once into a Cache and executed by a Runtime backed
// by github.com/yuin/gopher-lua. Keybindings, command-mode input and
// script directories all end up as named entries in the same cache.
//
// # Compilation
//
// Cache.Compile parses and compiles source to a function prototype. A script
// that fails to compile returns a *CompileError and is not stored, so an
// older version of the same name keeps working. Scripts loaded with
// CompileFile remember the file's modification time; NeedsReload reports
// when the file changed and Execute recompiles stale scripts before running
// them.
//
// # Execution
//
// Each Execute starts the script on a new coroutine thread. Primitives such
// as vmove or warning do not touch the application; they append a Command to
// a registry that the host drains with Commands after the call returns:
//
//	prompt, suspended, err := rt.Execute(ctx, "key:g")
//	for _, cmd := range rt.Commands() {
//		apply(cmd)
//	}
//	if suspended {
//		showPrompt(prompt)
//	}
//
// The registry is cleared when Execute or Resume starts. If the script
// fails, the commands it issued before the error are still returned.
//
// # Suspension
//
// ask(prompt) is the only primitive that suspends. It yields the coroutine
// back to the runtime, which keeps the thread until Resume supplies the
// answer as ask's return value, or Cancel drops it. Only one script can be
// suspended at a time; Execute while suspended returns a *ProtocolError
// wrapping ErrBusy. ask cannot be used inside callbacks such as the
// function passed to for_each_record, nor inside pcall or xpcall; there
// it raises an error that the protected call returns.
//
// # Context
//
// Before each Execute or Resume the host calls SetContext, which replaces
// the global tables app (mode, position, width, height, records, search,
// filter, command) and current (line, index, line_number and every parsed
// field). Functions appended to the record_processors table are run on each
// newly ingested record by ProcessRecord.
package script
