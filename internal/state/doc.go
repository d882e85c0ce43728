// Package state holds the UI state of logsift and applies script commands
// to it.
//
// # Overview
//
// Scripts never change the application directly. They issue commands such
// as vmove(1) or toggle_mark("red") into a registry, and the host hands the
// drained registry to Store.Apply, which turns each command into a change
// of the Snapshot: cursor position, scroll offsets, mode, search text and so
// on.
//
// # Core Types
//
// Store:
//   - Thread-safe container for the current Snapshot
//   - Uses sync.RWMutex; the UI reads while ingest goroutines update the
//     record count
//
// Snapshot:
//   - Plain value returned by copy
//   - Position always stays inside [0, Records) and ScrollTop keeps the
//     cursor inside a viewport of Height rows
//
// # Applying Commands
//
//	cmds := runtime.Commands()
//	fx := store.Apply(cmds, view.Visible, regexCache)
//	if fx.Filter {
//		view.SetFilter(ctx, store.FilterNode())
//	}
//
// Navigation commands move over the Navigator passed in, normally the
// visible record store. search_next and search_prev wrap around once;
// when nothing matches a warning is set and the cursor stays put. Marks are
// toggled on the records themselves, so they survive refiltering.
//
// Commands that need the host (clearing records, redrawing, refiltering)
// are reported in Effects instead of being performed here.
//
// # Queries
//
// SetSearch and SetFilter compile the query text. Invalid text returns an
// error and leaves the previous query active, so a typo never drops the
// current filter.
package state
