// Package logtail reads line-oriented input for the record store.
//
// # Overview
//
// Every source of records ends up as a stream of lines: a file read once, a
// gzip-compressed file, a file that keeps growing, or the output of a child
// process. This package turns each of those into calls to a line callback and
// leaves parsing to the record package.
//
// # Reading Files
//
// Open detects gzip compression from the magic bytes and decompresses with
// klauspost/compress. Read returns either every line or, given maxLines, the
// last maxLines using a ring buffer:
//
//	lines, err := logtail.Read("/var/log/app.log", 400)
//	if err != nil {
//		logger.Warn("read log", "error", err)
//	}
//
// Read returns nil, nil for files that do not exist. Other errors are
// wrapped.
//
// # Following Files
//
// ReadFrom reads complete lines starting at a byte offset and returns the
// offset to resume from; a trailing partial line is left for the next call.
// Follow combines ReadFrom with an fsnotify watcher. Bursts of write events
// are coalesced with a token-bucket limiter so a chatty writer costs at most
// one read per interval, and a final read is always scheduled after the
// burst. A file that shrinks is treated as truncated and re-read from the
// start.
//
// # Child Processes
//
// Exec runs a command and reports stdout and stderr lines as they arrive,
// tagged with their stream, then returns the exit status.
//
// # Limits
//
// Lines are limited to 1 MiB. Scanning starts with a 64 KiB buffer.
package logtail
