package record

import (
	"context"
	"fmt"
	"testing"

	"github.com/five82/logsift/internal/query"
	"github.com/five82/logsift/internal/regexcache"
)

func storeOf(lines ...string) *Store {
	s := NewStore()
	for i, line := range lines {
		rec := New(line)
		rec.Set(FieldLineNumber, fmt.Sprint(i+1))
		rec.Parse(nil)
		s.Add(rec)
	}
	return s
}

func originals(s *Store) []string {
	var out []string
	for _, rec := range s.Records() {
		out = append(out, rec.Original)
	}
	return out
}

func TestAdd_AssignsIndexAndMaxSize(t *testing.T) {
	s := storeOf("a", "abcd", "ab")
	for i, rec := range s.Records() {
		if rec.Index != i {
			t.Fatalf("record %d Index = %d", i, rec.Index)
		}
	}
	if s.MaxRecordSize() != 4 {
		t.Fatalf("MaxRecordSize = %d, want 4", s.MaxRecordSize())
	}
	if s.At(3) != nil || s.At(-1) != nil {
		t.Fatalf("At out of range returned a record")
	}
	s.Clear()
	if s.Len() != 0 || s.MaxRecordSize() != 0 {
		t.Fatalf("Clear left %d records, max %d", s.Len(), s.MaxRecordSize())
	}
}

func TestFilter_PreservesOrderAndRenumbers(t *testing.T) {
	s := storeOf("error one", "ok", "ERROR two", "fine", "error three")
	cache := regexcache.New(10)

	filtered := s.Filter(query.MustCompile("error"), cache)
	want := []string{"error one", "ERROR two", "error three"}
	if got := originals(filtered); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Filter = %q, want %q", got, want)
	}
	for i, rec := range filtered.Records() {
		if rec.Index != i {
			t.Fatalf("filtered record %d Index = %d", i, rec.Index)
		}
	}
	if s.At(2).Index != 2 {
		t.Fatalf("Filter renumbered the source store")
	}
	if s.Len() != 5 {
		t.Fatalf("Filter modified the source store")
	}

	// Marks made through the filtered view reach the source.
	filtered.At(1).ToggleMark("red")
	if !s.At(2).Marked() {
		t.Fatalf("mark on filtered record not visible in source")
	}
}

func TestFilterParallel_MatchesFilter(t *testing.T) {
	var lines []string
	for i := 0; i < 5000; i++ {
		lines = append(lines, fmt.Sprintf("line %d status=%d", i, 200+i%5*100))
	}
	s := NewStore(mustParsers(t, "logfmt")...)
	if err := s.IngestParallel(context.Background(), lines, "big.log"); err != nil {
		t.Fatalf("IngestParallel: %v", err)
	}
	cache := regexcache.New(10)
	q := query.MustCompile("status >= 500")

	serial := s.Filter(q, cache)
	parallel, err := s.FilterParallel(context.Background(), q, cache)
	if err != nil {
		t.Fatalf("FilterParallel: %v", err)
	}
	if serial.Len() != 2000 {
		t.Fatalf("Filter matched %d, want 2000", serial.Len())
	}
	if fmt.Sprint(originals(serial)) != fmt.Sprint(originals(parallel)) {
		t.Fatalf("FilterParallel result differs from Filter")
	}
	for i, rec := range parallel.Records() {
		if rec.Index != i {
			t.Fatalf("parallel record %d Index = %d", i, rec.Index)
		}
	}
}

func TestFilterParallel_Cancelled(t *testing.T) {
	s := storeOf("a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FilterParallel(ctx, query.MustCompile("a"), nil); err == nil {
		t.Fatalf("FilterParallel on cancelled context returned nil error")
	}
}

func TestSearch(t *testing.T) {
	s := storeOf("match", "no", "match", "no")
	q := query.MustCompile("match")

	if i, ok := s.SearchForward(q, nil, 1); !ok || i != 2 {
		t.Fatalf("SearchForward from 1 = %d, %v, want 2, true", i, ok)
	}
	if _, ok := s.SearchForward(q, nil, 3); ok {
		t.Fatalf("SearchForward from last index found a match")
	}
	// Caller-level wrap: search again from the start.
	if i, ok := s.SearchForward(q, nil, 0); !ok || i != 0 {
		t.Fatalf("wrapped SearchForward = %d, %v, want 0, true", i, ok)
	}

	if i, ok := s.SearchBackward(q, nil, 2); !ok || i != 2 {
		t.Fatalf("SearchBackward from 2 = %d, %v, want 2, true (inclusive)", i, ok)
	}
	if i, ok := s.SearchBackward(q, nil, 1); !ok || i != 0 {
		t.Fatalf("SearchBackward from 1 = %d, %v, want 0, true", i, ok)
	}
	if i, ok := s.SearchBackward(q, nil, s.Len()); !ok || i != 2 {
		t.Fatalf("SearchBackward from Len = %d, %v, want 2, true", i, ok)
	}
	if _, ok := NewStore().SearchBackward(q, nil, 0); ok {
		t.Fatalf("SearchBackward on empty store found a match")
	}
}

func TestRenumber(t *testing.T) {
	s := storeOf("a", "b", "c")
	for _, rec := range s.Records() {
		rec.Index = 99
	}
	s.Renumber()
	for i, rec := range s.Records() {
		if rec.Index != i {
			t.Fatalf("record %d Index = %d after Renumber", i, rec.Index)
		}
	}
}

func TestMarkedNavigation(t *testing.T) {
	s := storeOf("a", "b", "c", "d")
	s.At(1).ToggleMark("")
	s.At(3).ToggleMark("")

	if i, ok := s.NextMarked(1); !ok || i != 3 {
		t.Fatalf("NextMarked(1) = %d, %v, want 3", i, ok)
	}
	if i, ok := s.NextMarked(3); !ok || i != 1 {
		t.Fatalf("NextMarked(3) = %d, %v, want 1 (wrapped)", i, ok)
	}
	if i, ok := s.PrevMarked(1); !ok || i != 3 {
		t.Fatalf("PrevMarked(1) = %d, %v, want 3 (wrapped)", i, ok)
	}
	if _, ok := storeOf("x").NextMarked(0); ok {
		t.Fatalf("NextMarked found a mark in an unmarked store")
	}
}

func TestReparse_KeepsMarksAndMetadata(t *testing.T) {
	s := storeOf("level=info a", "level=warn b")
	s.At(0).ToggleMark("blue")
	s.SetParsers(mustParsers(t, "logfmt"))
	if err := s.Reparse(context.Background()); err != nil {
		t.Fatalf("Reparse: %v", err)
	}
	rec := s.At(0)
	if rec.Fields["level"] != "info" || rec.Fields[FieldMark] != "blue" || rec.Fields[FieldLineNumber] != "1" {
		t.Fatalf("Reparse fields = %v", rec.Fields)
	}
}

func TestSetField(t *testing.T) {
	s := storeOf("a")
	if !s.SetField(0, "k", "v") || s.At(0).Fields["k"] != "v" {
		t.Fatalf("SetField did not set the field")
	}
	if s.SetField(5, "k", "v") {
		t.Fatalf("SetField out of range returned true")
	}
}

func mustParsers(t *testing.T, specs ...string) []LineParser {
	t.Helper()
	ps, err := ParseLineParsers(specs)
	if err != nil {
		t.Fatalf("ParseLineParsers: %v", err)
	}
	return ps
}
