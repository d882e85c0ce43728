package record

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/five82/logsift/internal/query"
)

// minChunk keeps tiny inputs on a single worker.
const minChunk = 512

// Store is an ordered sequence of records and the parsers applied to new
// lines. It is not safe for concurrent mutation; the event loop owns it and
// only worker pools started by the store itself run alongside.
type Store struct {
	records []*Record
	parsers []LineParser
	maxSize int
}

// NewStore returns an empty store using parsers for new lines.
func NewStore(parsers ...LineParser) *Store {
	return &Store{parsers: parsers}
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// At returns the record at i, or nil when i is out of range.
func (s *Store) At(i int) *Record {
	if i < 0 || i >= len(s.records) {
		return nil
	}
	return s.records[i]
}

// Records returns the backing slice. Callers must not append to it.
func (s *Store) Records() []*Record {
	return s.records
}

// Parsers returns the configured line parsers.
func (s *Store) Parsers() []LineParser {
	return s.parsers
}

// SetParsers replaces the line parsers used for subsequent ingestion. Use
// Reparse to apply them to existing records.
func (s *Store) SetParsers(parsers []LineParser) {
	s.parsers = parsers
}

// MaxRecordSize returns the length of the longest line seen so far.
func (s *Store) MaxRecordSize() int {
	return s.maxSize
}

// Add appends rec and sets its index.
func (s *Store) Add(rec *Record) {
	rec.Index = len(s.records)
	s.records = append(s.records, rec)
	if n := len(rec.Original); n > s.maxSize {
		s.maxSize = n
	}
}

// Clear drops every record but keeps the parsers.
func (s *Store) Clear() {
	s.records = nil
	s.maxSize = 0
}

// SetField assigns a field on the record at i; RemoveSentinel deletes it.
func (s *Store) SetField(i int, name, value string) bool {
	rec := s.At(i)
	if rec == nil {
		return false
	}
	rec.Set(name, value)
	return true
}

// Renumber sets every record's index to its position.
func (s *Store) Renumber() {
	for i, rec := range s.records {
		rec.Index = i
	}
}

// Filter returns a renumbered store holding the records matching n, in their
// original relative order. The receiver is not modified.
func (s *Store) Filter(n query.Node, re query.RegexMatcher) *Store {
	out := &Store{parsers: s.parsers}
	for _, rec := range s.records {
		if query.Matches(n, rec, re) {
			out.Add(rec.clone())
		}
	}
	return out
}

// FilterParallel is Filter spread over a worker pool. Each worker scans a
// contiguous chunk; chunks are joined in order once every worker is done.
func (s *Store) FilterParallel(ctx context.Context, n query.Node, re query.RegexMatcher) (*Store, error) {
	chunks := chunkBounds(len(s.records))
	results := make([][]*Record, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for ci, bounds := range chunks {
		g.Go(func() error {
			var matched []*Record
			for i, rec := range s.records[bounds[0]:bounds[1]] {
				if i%minChunk == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if query.Matches(n, rec, re) {
					matched = append(matched, rec)
				}
			}
			results[ci] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Store{parsers: s.parsers}
	for _, matched := range results {
		for _, rec := range matched {
			out.Add(rec.clone())
		}
	}
	return out, nil
}

// SearchForward returns the first match at or after start. It does not wrap.
func (s *Store) SearchForward(n query.Node, re query.RegexMatcher, start int) (int, bool) {
	start = max(start, 0)
	for i := start; i < len(s.records); i++ {
		if query.Matches(n, s.records[i], re) {
			return i, true
		}
	}
	return 0, false
}

// SearchBackward returns the last match at or before start. A start at or
// past Len means search from the last record.
func (s *Store) SearchBackward(n query.Node, re query.RegexMatcher, start int) (int, bool) {
	if start >= len(s.records) {
		start = len(s.records) - 1
	}
	for i := start; i >= 0; i-- {
		if query.Matches(n, s.records[i], re) {
			return i, true
		}
	}
	return 0, false
}

// NextMarked returns the first marked record after from, wrapping once
// around the end.
func (s *Store) NextMarked(from int) (int, bool) {
	n := len(s.records)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if i < 0 {
			i += n
		}
		if s.records[i].Marked() {
			return i, true
		}
	}
	return 0, false
}

// PrevMarked returns the first marked record before from, wrapping once
// around the start.
func (s *Store) PrevMarked(from int) (int, bool) {
	n := len(s.records)
	for step := 1; step <= n; step++ {
		i := ((from-step)%n + n) % n
		if s.records[i].Marked() {
			return i, true
		}
	}
	return 0, false
}

// chunkBounds splits n items into contiguous [start, end) ranges, one per
// worker, never smaller than minChunk.
func chunkBounds(n int) [][2]int {
	if n == 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	size := max((n+workers-1)/workers, minChunk)
	var chunks [][2]int
	for start := 0; start < n; start += size {
		chunks = append(chunks, [2]int{start, min(start+size, n)})
	}
	return chunks
}

// preserved survive Reparse because they come from ingestion or the user,
// not from the line itself.
var preserved = []string{FieldFilename, FieldLineNumber, FieldMark}

// Reparse clears every record's derived fields and runs the current parsers
// again. Field maps are reset in place so filtered views sharing them stay
// in sync.
func (s *Store) Reparse(ctx context.Context) error {
	if len(s.records) == 0 {
		return nil
	}
	reparse := func(rec *Record) {
		keep := make(map[string]string, len(preserved))
		for _, name := range preserved {
			if v, ok := rec.Fields[name]; ok {
				keep[name] = v
			}
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]string)
		}
		clear(rec.Fields)
		for k, v := range keep {
			rec.Fields[k] = v
		}
		rec.Parse(s.parsers)
	}

	reparse(s.records[0])
	rest := s.records[1:]
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, bounds := range chunkBounds(len(rest)) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, rec := range rest[bounds[0]:bounds[1]] {
				reparse(rec)
			}
			return nil
		})
	}
	return g.Wait()
}
