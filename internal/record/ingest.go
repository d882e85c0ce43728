package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/five82/logsift/internal/logtail"
)

// streamBuffer bounds how far a producer may run ahead of the event loop.
const streamBuffer = 1024

// ExitMarkColor marks the synthetic record that reports a command's exit.
const ExitMarkColor = "white red"

// Event carries one record produced by a background source. The last event
// of a failed source carries only Err.
type Event struct {
	Record *Record
	Err    error
}

// builder parses lines into records with a fixed parser set.
type builder struct {
	parsers  []LineParser
	filename string
	next     int // line number of the next line
}

func (b *builder) build(line string) *Record {
	rec := New(line)
	if b.filename != "" {
		rec.Set(FieldFilename, b.filename)
	}
	rec.Set(FieldLineNumber, strconv.Itoa(b.next))
	b.next++
	rec.Parse(b.parsers)
	return rec
}

func (s *Store) builder(filename string, firstLine int) *builder {
	parsers := make([]LineParser, len(s.parsers))
	copy(parsers, s.parsers)
	return &builder{parsers: parsers, filename: filename, next: firstLine}
}

// IngestParallel parses lines on a worker pool and appends the resulting
// records in input order. Line numbers start at 1. The first line is parsed
// on the calling goroutine so parsers that learn from it, such as csv, see
// it before any other line.
func (s *Store) IngestParallel(ctx context.Context, lines []string, filename string) error {
	if len(lines) == 0 {
		return nil
	}
	parsers := s.builder(filename, 1).parsers
	records := make([]*Record, len(lines))

	first := &builder{parsers: parsers, filename: filename, next: 1}
	records[0] = first.build(lines[0])

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, bounds := range chunkBounds(len(lines) - 1) {
		start, end := bounds[0]+1, bounds[1]+1
		g.Go(func() error {
			b := &builder{parsers: parsers, filename: filename, next: start + 1}
			for i := start; i < end; i++ {
				if (i-start)%minChunk == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				records[i] = b.build(lines[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ingest %s: %w", filename, err)
	}

	for _, rec := range records {
		s.Add(rec)
	}
	return nil
}

// IngestFile reads path, decompressing gzip input, and ingests every line
// in parallel. It returns the offset a follower should resume from, or -1
// for compressed files.
func (s *Store) IngestFile(ctx context.Context, path string) (int64, error) {
	lines, offset, err := logtail.Load(path)
	if err != nil {
		return 0, err
	}
	return offset, s.IngestParallel(ctx, lines, path)
}

// IngestStreaming reads src on a dedicated goroutine and emits one event per
// line. The channel is closed at end of input or when ctx is done.
func (s *Store) IngestStreaming(ctx context.Context, src io.Reader, filename string) <-chan Event {
	events := make(chan Event, streamBuffer)
	b := s.builder(filename, 1)
	go func() {
		defer close(events)
		err := logtail.Scan(ctx, src, func(line string) error {
			return send(ctx, events, Event{Record: b.build(line)})
		})
		finish(ctx, events, err)
	}()
	return events
}

// IngestFollow emits a record for every line appended to path after offset,
// numbering them from firstLine. It runs until ctx is done.
func (s *Store) IngestFollow(ctx context.Context, path string, offset int64, firstLine int, opts logtail.FollowOptions) <-chan Event {
	events := make(chan Event, streamBuffer)
	b := s.builder(path, firstLine)
	go func() {
		defer close(events)
		err := logtail.Follow(ctx, path, offset, func(line string) error {
			return send(ctx, events, Event{Record: b.build(line)})
		}, opts)
		finish(ctx, events, err)
	}()
	return events
}

// IngestCommand runs argv and emits its output as records, stdout and stderr
// tagged through the filename field. When the process ends a final
// "EXIT: <status>" record is emitted, marked when the status is non-zero.
func (s *Store) IngestCommand(ctx context.Context, argv []string) <-chan Event {
	events := make(chan Event, streamBuffer)
	out := s.builder(string(logtail.Stdout), 1)
	errs := s.builder(string(logtail.Stderr), 1)
	go func() {
		defer close(events)
		status, err := logtail.Exec(ctx, argv, func(stream logtail.Stream, line string) error {
			b := out
			if stream == logtail.Stderr {
				b = errs
			}
			return send(ctx, events, Event{Record: b.build(line)})
		})
		if err != nil {
			finish(ctx, events, err)
			return
		}
		rec := New(fmt.Sprintf("EXIT: %d", status))
		rec.Set(FieldFilename, string(logtail.Stderr))
		if status != 0 {
			rec.Set(FieldMark, ExitMarkColor)
		}
		_ = send(ctx, events, Event{Record: rec})
	}()
	return events
}

func send(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func finish(ctx context.Context, events chan<- Event, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	_ = send(ctx, events, Event{Err: err})
}
