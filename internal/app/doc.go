// Package app provides the orchestration layer for logsift.
//
// # Overview
//
// This package wires together configuration, record ingest, the script
// runtime, UI state and the TUI. It is the composition root where all
// dependencies are initialized and connected.
//
// # Architecture
//
//  1. Load settings from ~/.config/logsift/settings.toml
//  2. Open the log file and install it as the default slog logger
//  3. Pick a rule (-rule, or the first file's name) and build its parsers
//  4. Load script directories and compile keybindings as "key:<key>"
//  5. Ingest the named files in parallel, whole or only their tail
//  6. Start live sources: followed files, stdin, a command after "--"
//  7. Run the "init" script if one exists and record processors over the
//     loaded records
//  8. Start the TUI and block until the user quits or the context ends
//
// # Components
//
//   - app.go: Run, log setup, rule selection and startup ingest
//   - pump.go: batching of live record events for the UI
//
// # Data Flow
//
//	follow / stdin / command
//	       │  (one goroutine each, record.Event channels)
//	       ▼
//	merge() ──> Pump.Run() ──> ui RecordsMsg ──> view.Add()
//	               ▲
//	               └── Keypress() from the UI shortens the wait
//
// # Event Pump
//
// The pump waits up to 60 seconds while nothing is pending, 100ms after the
// first record of a batch and 10ms after a keypress. A batch is flushed
// early once it holds 100 events, and whatever is pending is flushed when
// all sources have closed. Records are only added to the view on the UI
// goroutine, so ingest never races with rendering or scripts.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid settings, an unknown -rule or a broken keybinding
//   - A file named on the command line that cannot be read
//
// Recoverable errors (logged, the UI keeps running):
//   - Scripts in a script directory that fail to compile
//   - A failing init script or record processor
//   - Live sources that stop with an error; the error is also shown as a
//     warning
package app
