// Package record holds ingested log lines and the operations the viewer
// runs over them.
//
// # Records
//
// A Record is one raw line plus a map of named fields. Fields come from
// three places: built-ins computed for every line (word_count, and timestamp
// when the line contains an ISO-like date), ingestion metadata (filename,
// line_number), and the configured line parsers. Marks and script updates
// write fields later; assigning RemoveSentinel deletes a field.
//
// # Line Parsers
//
// Parsers are configured per rule as short specifications:
//
//	logfmt                            key=value and key="quoted value"
//	regex ^(?P<level>\w+) (?P<msg>.*) named groups; groups starting with _ are skipped
//	pattern <date> <_> [<level>] <msg> the pattern language below
//	csv                               first line is the header
//	autodatetime                      timestamp defaults to ingestion time
//	transform timestamp rfc3339       normalize timestamp to RFC 3339
//
// In a pattern, <name> captures non-greedily into a field, <_> and <>
// capture without a name, and every other character matches literally.
//
// # Stores
//
// A Store is an ordered, append-only sequence. Filter and FilterParallel
// build a new renumbered store and never touch the receiver; records in the
// result share their field maps with the source so marks made while a
// filter is active are still present once it is cleared. Searches do not
// wrap; callers implement wrap-around by searching again from the other end.
//
// # Concurrency
//
// Bulk work (IngestParallel, FilterParallel, Reparse) fans out over a worker
// pool sized to GOMAXPROCS with contiguous chunks and joins before the store
// is touched, so the store itself needs no lock. Streaming sources
// (IngestStreaming, IngestFollow, IngestCommand) parse on their own goroutine
// and hand finished records to the event loop over a buffered channel.
package record
