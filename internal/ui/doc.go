// Package ui provides the terminal interface for logsift.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model owns no log data of its own: records
// live in a record.View, cursor and mode live in a state.Store, and every
// key in normal mode runs a Lua script through script.Runtime. The model's
// job is to route keys, hand the commands a script issued to the state store
// and draw the result.
//
// # Package Structure
//
//   - app.go: Model, Options, Run and key routing
//   - render.go: record rows, details and REPL pane, status and prompt lines
//   - theme.go: lipgloss styles built from the configured colour pairs
//   - keys.go: keys the UI handles itself (ctrl+c, prompt keys)
//
// # Modes
//
//   - normal: keys are looked up as "key:<name>" scripts, e.g. "key:j"
//   - search, filter, command: a one-line prompt; enter submits, esc leaves
//   - script_input: a script is suspended in ask; enter resumes it with the
//     typed text, esc cancels it
//   - lua_repl: each line is executed and its print output is shown in the
//     pane above the status line
//   - warning: any key returns to normal
//
// # Event Flow
//
//  1. Run starts the program and, when Options.Feed is set, a goroutine that
//     delivers batches of records as RecordsMsg
//  2. RecordsMsg runs record processors and appends to the view
//  3. A key runs a script with app and current refreshed from the snapshot
//  4. The issued commands go through state.Store.Apply; effects such as
//     clearing records or refiltering are carried out on the view
package ui
